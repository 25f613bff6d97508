/*
main.go - Application entry point

PURPOSE:
  The bensave command: an HTTP server for the wallet widget plus CLI
  commands that operate on the same SQLite-backed wallet.

STARTUP SEQUENCE (every command):
  1. Load config (TOML file, .env, BENSAVE_* env vars, then flags)
  2. Build the logrus logger
  3. Open the SQLite store (migrations run on open)
  4. Open the wallet session (loads and logs a degraded blob)

COMMANDS:
  serve                      HTTP API + static widget
  status                     Balance, budget and savings
  budget set AMOUNT          Start a new week with AMOUNT to spend
  expense add AMOUNT DESC    Log an expense (asks near the limit)
  goal set AMOUNT DATE       Savings goal, DATE as YYYY-MM-DD
  deposit / withdraw         Simulated mobile-money transfer
  convert AMOUNT CURRENCY    Convert into cedis, optionally add to balance
  history                    Recent activity
  reset                      Wipe the wallet

EXAMPLES:
  bensave serve --port 3000
  bensave --db :memory: serve
  bensave expense add 45 "Lunch" --yes
  bensave deposit 100 --provider mtn --phone 0241234567

SEE ALSO:
  - internal/config/config.go: Configuration keys
  - api/server.go: Router configuration
  - session/session.go: The wallet session
*/
package main

func main() {
	Execute()
}
