package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"iter"
	"mwdb/pkg/mwdb"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// isHash reports whether v is a hex encoded MD5, SHA1, SHA256 or SHA512.
func isHash(v string) bool {
	switch len(v) {
	case 32, 40, 64, 128:
		_, err := hex.DecodeString(v)

		return err == nil
	default:
		return false
	}
}

// parseHash validates and lowercases an object identifier.
func parseHash(v string) (string, error) {
	if !isHash(v) {
		return "", fmt.Errorf("'%s' is not correct MD5/SHA1/SHA256/SHA512 hash", v)
	}

	return strings.ToLower(v), nil
}

// hashOrFile accepts an object identifier or a path to a local file, which
// is then identified by its SHA256.
func hashOrFile(v string) (string, error) {
	if isHash(v) {
		return strings.ToLower(v), nil
	}

	b, err := os.ReadFile(v)
	if err != nil {
		return "", fmt.Errorf("'%s' is neither a hash nor a readable file: %w", v, err)
	}
	sum := sha256.Sum256(b)

	return hex.EncodeToString(sum[:]), nil
}

// take stops a sequence after n objects; n <= 0 means no limit.
func take(seq iter.Seq2[*mwdb.Object, error], n int) iter.Seq2[*mwdb.Object, error] {
	if n <= 0 {
		return seq
	}

	return func(yield func(*mwdb.Object, error) bool) {
		i := 0
		for obj, err := range seq {
			if !yield(obj, err) || err != nil {
				return
			}
			i++
			if i >= n {
				return
			}
		}
	}
}

func objects(objs []*mwdb.Object) iter.Seq2[*mwdb.Object, error] {
	return func(yield func(*mwdb.Object, error) bool) {
		for _, o := range objs {
			if !yield(o, nil) {
				return
			}
		}
	}
}

// withDefault makes parent run def when no subcommand is named. The flags of
// def are shared so they can be given to either command.
func withDefault(parent, def *cobra.Command) *cobra.Command {
	parent.Args = def.Args
	parent.RunE = def.RunE
	parent.Flags().AddFlagSet(def.Flags())
	parent.AddCommand(def)

	return parent
}
