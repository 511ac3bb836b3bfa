// Package sqlstore implements wallet storage over SQLite or PostgreSQL
// through sqlx. Queries use "?" placeholders and are rebound per driver.
package sqlstore
