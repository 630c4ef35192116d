// Command badger_inspect dumps the raw key space of a mystiko data
// directory, for poking at a store without starting the server.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "mystiko-data", "Path to badger DB")
	prefix := flag.String("prefix", "", "Prefix to scan: user:, room:, msg: (empty scans everything)")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Timestamp", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())
			err := item.Value(func(val []byte) error {
				kind, timestamp, detail := describe(key, val)
				table.Append([]string{key, kind, timestamp, detail})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

// describe picks the human-readable columns for one record based on its
// key prefix. Unknown prefixes fall back to a size dump.
func describe(key string, val []byte) (kind, timestamp, detail string) {
	switch {
	case strings.HasPrefix(key, "user:"):
		var record struct {
			Username  string `json:"username"`
			CreatedAt int64  `json:"created_at"`
		}
		if err := json.Unmarshal(val, &record); err != nil {
			return "USER", "--:--:--", fmt.Sprintf("unreadable: %v", err)
		}
		return "USER", time.Unix(record.CreatedAt, 0).Format(time.DateTime), record.Username

	case strings.HasPrefix(key, "room:"):
		var record struct {
			Name         string `json:"name"`
			Creator      string `json:"creator"`
			Description  string `json:"description"`
			PasswordHash string `json:"password_hash"`
			CreatedAt    int64  `json:"created_at"`
		}
		if err := json.Unmarshal(val, &record); err != nil {
			return "ROOM", "--:--:--", fmt.Sprintf("unreadable: %v", err)
		}
		visibility := "public"
		if record.PasswordHash != "" {
			visibility = "private"
		}
		return "ROOM", time.Unix(record.CreatedAt, 0).Format(time.DateTime),
			fmt.Sprintf("%s by %s (%s) %s", record.Name, record.Creator, visibility, record.Description)

	case strings.HasPrefix(key, "msg:"):
		var record struct {
			Sender  string `json:"sender"`
			Content string `json:"content"`
			Kind    string `json:"kind"`
			At      int64  `json:"at"`
		}
		if err := json.Unmarshal(val, &record); err != nil {
			return "MSG", "--:--:--", fmt.Sprintf("unreadable: %v", err)
		}
		content := record.Content
		if len(content) > 60 {
			content = content[:60] + "…"
		}
		return strings.ToUpper(record.Kind), time.Unix(0, record.At).Format(time.DateTime),
			fmt.Sprintf("%s: %s", record.Sender, content)

	default:
		return "RAW", "--:--:--", fmt.Sprintf("size: %d bytes", len(val))
	}
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)

	return badger.Open(opts)
}
