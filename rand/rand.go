// Package rand generates the random data and identifiers used across sessions.
package rand

import (
	cryptoRand "crypto/rand"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// GenerateCryptoSafeRandomData fills b with cryptographically-safe random data.
func GenerateCryptoSafeRandomData(b []byte) error {
	if _, err := cryptoRand.Read(b); err != nil {
		return errors.Wrap(err, "reading random data")
	}
	return nil
}

// GenerateUuid returns a UUID in string format (including hyphens).
func GenerateUuid() string {
	return uuid.NewString()
}

var (
	node     *snowflake.Node
	nodeErr  error
	nodeOnce sync.Once
)

// InitNode sets the snowflake node used by GenerateID. It must be called before the first GenerateID call
// to take effect; otherwise node 1 is used.
func InitNode(id int64) error {
	nodeOnce.Do(func() {
		node, nodeErr = snowflake.NewNode(id)
	})
	return errors.Wrapf(nodeErr, "creating snowflake node %d", id)
}

// GenerateID returns a time ordered, process unique ID. Used to tag connections in logs.
func GenerateID() (int64, error) {
	if err := InitNode(1); err != nil {
		return 0, err
	}
	return node.Generate().Int64(), nil
}
