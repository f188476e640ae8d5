package internal

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const DefaultPrefix = "participant:name:"

var inspectTemplate = template.Must(template.New("inspect").Parse(`<!DOCTYPE html>
<html>
<head><title>Badger inspector</title></head>
<body>
<form method="get"><input name="prefix" value="{{.Prefix}}"><button>Scan</button></form>
<p>{{len .Items}} keys</p>
<table border="1" cellpadding="4">
<tr><th>Key</th><th>Type</th><th>Time</th><th>Detail</th></tr>
{{range .Items}}<tr><td>{{.Key}}</td><td>{{.Type}}</td><td>{{.Timestamp}}</td><td><code>{{.Detail}}</code></td></tr>
{{end}}</table>
</body>
</html>`))

type InspectRow struct {
	Key       string
	Type      string
	Timestamp string
	Detail    string
}

type RowMapper func(key string, val []byte) InspectRow

type PageData struct {
	Prefix string
	Items  []InspectRow
}

// DebugHandler renders the keys under ?prefix as an HTML table.
func DebugHandler(db *badger.DB, mapper RowMapper) http.Handler {
	if mapper == nil {
		mapper = DocumentMapper
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = DefaultPrefix
		}

		data := PageData{Prefix: prefix}
		err := db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				if err := item.Value(func(val []byte) error {
					data.Items = append(data.Items, mapper(string(item.Key()), val))
					return nil
				}); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = inspectTemplate.Execute(w, data)
	})
}

// StartDebugServer serves the inspector on port until the returned server is shut down.
func StartDebugServer(db *badger.DB, port int, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /inspect", DebugHandler(db, DocumentMapper))
	server := &http.Server{
		Addr:              fmt.Sprintf("localhost:%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("Debug inspector stopped", "error", err)
		}
	}()
	log.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://%s/inspect", server.Addr))
	return server
}

// DocumentMapper shows stored documents as JSON. Index entries hold plain
// strings and are shown as is.
func DocumentMapper(key string, val []byte) InspectRow {
	row := InspectRow{
		Key:       key,
		Type:      strings.SplitN(key, ":", 2)[0],
		Timestamp: "--:--:--",
		Detail:    "Size: " + strconv.Itoa(len(val)) + " bytes",
	}

	var doc structpb.Struct
	if err := proto.Unmarshal(val, &doc); err != nil || len(doc.GetFields()) == 0 {
		row.Detail = string(val)
		return row
	}
	if raw, err := protojson.Marshal(&doc); err == nil {
		row.Detail = string(raw)
	}
	for _, field := range []string{"lastSeen", "at"} {
		if ts, err := time.Parse(time.RFC3339Nano, doc.GetFields()[field].GetStringValue()); err == nil {
			row.Timestamp = ts.Format("15:04:05")
		}
	}
	return row
}
