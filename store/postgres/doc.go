// Package postgres persists account records and external identity links
// in Postgres, implementing authcove.UserStore.
//
// Email uniqueness is enforced case-insensitively by a unique index on
// lower(email); the (provider, subject) pair of an external identity is
// the table's primary key. Schema changes ship as embedded goose
// migrations applied by [Store.Migrate].
package postgres
