//go:build sqlite_vec && cgo

package vector

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	// Register the sqlite-vec extension with the mattn/go-sqlite3 driver so
	// the local backend can push cosine scoring into the database.
	vec.Auto()
}
