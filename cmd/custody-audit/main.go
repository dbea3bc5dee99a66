package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"bridge-backend/internal/config"

	"github.com/holiman/uint256"
	_ "github.com/lib/pq"
)

// custody-audit checks the persisted bridge state for value conservation:
//   - vault balance of each asset == sum(amount+fee) over pending and completed transfers
//   - every cancelled or failed transfer refunded exactly amount+fee
func main() {
	configPath := flag.String("config", "", "Path to config file")
	dsnFlag := flag.String("dsn", "", "Postgres DSN, overrides the config file")
	flag.Parse()

	if err := config.LoadConfig(*configPath); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	dsn := config.AppConfig.Database.DSN
	if *dsnFlag != "" {
		dsn = *dsnFlag
	}
	if dsn == "" {
		log.Fatal("No database DSN configured")
	}
	vault, err := config.ParseAddress("bridge.vault", config.AppConfig.Bridge.Vault)
	if err != nil {
		log.Fatalf("Invalid vault address: %v", err)
	}

	fmt.Println("🔍 Auditing bridge custody...")
	fmt.Println(strings.Repeat("=", 60))

	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer sqlDB.Close()

	var dbName string
	if err := sqlDB.QueryRow("SELECT current_database()").Scan(&dbName); err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	fmt.Printf("📋 Connected to database: %s\n", dbName)

	problems := 0

	expected, err := expectedCustody(sqlDB)
	if err != nil {
		log.Fatalf("Failed to sum transfers: %v", err)
	}
	held, err := vaultBalances(sqlDB, strings.ToLower(vault.Hex()))
	if err != nil {
		log.Fatalf("Failed to read vault balances: %v", err)
	}
	for asset := range held {
		if _, ok := expected[asset]; !ok {
			expected[asset] = new(uint256.Int)
		}
	}
	for asset, want := range expected {
		got, ok := held[asset]
		if !ok {
			got = new(uint256.Int)
		}
		if got.Eq(want) {
			fmt.Printf("✅ %s vault=%s\n", asset, got.Dec())
			continue
		}
		problems++
		fmt.Printf("❌ %s vault=%s expected=%s\n", asset, got.Dec(), want.Dec())
	}

	mismatches, err := refundMismatches(sqlDB)
	if err != nil {
		log.Fatalf("Failed to check refunds: %v", err)
	}
	for _, m := range mismatches {
		problems++
		fmt.Printf("❌ transfer %d (%s) refunded %s, expected %s\n", m.id, m.event, m.refund, m.want.Dec())
	}
	if len(mismatches) == 0 {
		fmt.Println("✅ Every refunded transfer returned amount+fee")
	}

	fmt.Println(strings.Repeat("=", 60))
	if problems > 0 {
		fmt.Printf("❌ %d custody problem(s) found\n", problems)
		os.Exit(1)
	}
	fmt.Println("✅ Custody is consistent")
}

// expectedCustody what the vault must hold per asset: escrows of pending transfers plus released totals
func expectedCustody(db *sql.DB) (map[string]*uint256.Int, error) {
	rows, err := db.Query(`
		SELECT asset, amount, fee
		FROM bridge_transfers
		WHERE status IN ('pending', 'completed')
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[string]*uint256.Int)
	for rows.Next() {
		var asset, amount, fee string
		if err := rows.Scan(&asset, &amount, &fee); err != nil {
			return nil, err
		}
		total, err := sum(amount, fee)
		if err != nil {
			return nil, fmt.Errorf("asset %s: %w", asset, err)
		}
		if prev, ok := totals[asset]; ok {
			total.Add(total, prev)
		}
		totals[asset] = total
	}
	return totals, rows.Err()
}

func vaultBalances(db *sql.DB, vault string) (map[string]*uint256.Int, error) {
	rows, err := db.Query(`SELECT asset, amount FROM bridge_token_balances WHERE holder = $1`, vault)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	balances := make(map[string]*uint256.Int)
	for rows.Next() {
		var asset, amount string
		if err := rows.Scan(&asset, &amount); err != nil {
			return nil, err
		}
		v, err := uint256.FromDecimal(amount)
		if err != nil {
			return nil, fmt.Errorf("balance of %s: %w", asset, err)
		}
		balances[asset] = v
	}
	return balances, rows.Err()
}

type refundMismatch struct {
	id     uint64
	event  string
	refund string
	want   *uint256.Int
}

func refundMismatches(db *sql.DB) ([]refundMismatch, error) {
	rows, err := db.Query(`
		SELECT t.id, e.name, COALESCE(e.payload->>'refund', ''), t.amount, t.fee
		FROM bridge_transfers t
		JOIN bridge_event_logs e ON e.transfer_id = t.id
		WHERE t.status IN ('cancelled', 'failed')
		AND e.name IN ('TransferCancelled', 'TransferFailed')
		ORDER BY t.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []refundMismatch
	for rows.Next() {
		var (
			id                        uint64
			name, refund, amount, fee string
		)
		if err := rows.Scan(&id, &name, &refund, &amount, &fee); err != nil {
			return nil, err
		}
		want, err := sum(amount, fee)
		if err != nil {
			return nil, fmt.Errorf("transfer %d: %w", id, err)
		}
		got, err := uint256.FromDecimal(refund)
		if err != nil || !got.Eq(want) {
			out = append(out, refundMismatch{id: id, event: name, refund: refund, want: want})
		}
	}
	return out, rows.Err()
}

func sum(amount, fee string) (*uint256.Int, error) {
	a, err := uint256.FromDecimal(amount)
	if err != nil {
		return nil, fmt.Errorf("amount %q: %w", amount, err)
	}
	f, err := uint256.FromDecimal(fee)
	if err != nil {
		return nil, fmt.Errorf("fee %q: %w", fee, err)
	}
	total, overflow := new(uint256.Int).AddOverflow(a, f)
	if overflow {
		return nil, fmt.Errorf("amount+fee overflows")
	}
	return total, nil
}
