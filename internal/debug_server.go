// Package internal hosts the operator-facing debug endpoint: a read-only
// HTML view over the raw badger key space, plus live server stats. It is
// only started when a debug port is configured.
package internal

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

//go:embed inspect.html
var templatesFS embed.FS

type InspectRow struct {
	Key       string
	Type      string
	Timestamp string
	Detail    string
}

type StatsProvider func() map[string]any

type PageData struct {
	Prefix string
	Items  []InspectRow
	Stats  map[string]any
}

// StartDebugServer serves the inspector on /inspect. It never writes to
// the store and is meant for localhost use only.
func StartDebugServer(db *badger.DB, port int, statsProvider StatsProvider) {
	mux := http.NewServeMux()
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))

	mux.HandleFunc("/inspect", func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")

		data := PageData{
			Prefix: prefix,
			Stats:  make(map[string]any),
		}
		if statsProvider != nil {
			data.Stats = statsProvider()
		}

		_ = db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				_ = item.Value(func(val []byte) error {
					data.Items = append(data.Items, mapRow(string(item.Key()), val))
					return nil
				})
			}
			return nil
		})

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	})

	go func() {
		_ = http.ListenAndServe(fmt.Sprintf("127.0.0.1:%d", port), mux)
	}()
}

// mapRow renders one record according to its key prefix.
func mapRow(key string, val []byte) InspectRow {
	row := InspectRow{
		Key:       key,
		Type:      "RAW",
		Timestamp: "--:--:--",
		Detail:    fmt.Sprintf("size: %d bytes", len(val)),
	}

	switch {
	case strings.HasPrefix(key, "user:"):
		var record struct {
			Username  string `json:"username"`
			CreatedAt int64  `json:"created_at"`
		}
		if json.Unmarshal(val, &record) == nil {
			row.Type = "USER"
			row.Timestamp = time.Unix(record.CreatedAt, 0).Format(time.DateTime)
			row.Detail = record.Username
		}
	case strings.HasPrefix(key, "room:"):
		var record struct {
			Name        string `json:"name"`
			Creator     string `json:"creator"`
			Description string `json:"description"`
			CreatedAt   int64  `json:"created_at"`
		}
		if json.Unmarshal(val, &record) == nil {
			row.Type = "ROOM"
			row.Timestamp = time.Unix(record.CreatedAt, 0).Format(time.DateTime)
			row.Detail = fmt.Sprintf("%s by %s: %s", record.Name, record.Creator, record.Description)
		}
	case strings.HasPrefix(key, "msg:"):
		var record struct {
			Sender  string `json:"sender"`
			Content string `json:"content"`
			Kind    string `json:"kind"`
			At      int64  `json:"at"`
		}
		if json.Unmarshal(val, &record) == nil {
			row.Type = strings.ToUpper(record.Kind)
			row.Timestamp = time.Unix(0, record.At).Format(time.DateTime)
			row.Detail = fmt.Sprintf("%s: %s", record.Sender, record.Content)
		}
	}
	return row
}
