package main

import (
	"chat-presence/domain"
	"chat-presence/repositories"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" default:"./data/badger"`
	Colours        bool   `envconfig:"INSPECT_COLOURS" default:"true"`
}

func main() {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		log.Fatal("Config error: ", err)
	}
	dbPath := flag.String("db", config.BadgerFilepath, "Path to badger DB")
	collection := flag.String("collection", "all", "participants, messages or all")
	flag.Parse()
	color.Enable = config.Colours

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	if *collection == "all" || *collection == "participants" {
		participants, err := repositories.NewParticipantRepository(db, domain.SystemClock{}, slog.Default()).List()
		if err != nil {
			log.Fatal(err)
		}
		color.Cyan.Printf("participants (%d)\n", len(participants))
		renderParticipants(os.Stdout, participants)
	}
	if *collection == "all" || *collection == "messages" {
		messages, err := repositories.ReadMessages(db)
		if err != nil {
			log.Fatal(err)
		}
		color.Cyan.Printf("messages (%d)\n", len(messages))
		renderMessages(os.Stdout, messages)
	}
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
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
	return table
}

func renderParticipants(w io.Writer, participants []domain.Participant) {
	table := newTable(w, []string{"Name", "ID", "Last Seen"})
	for _, p := range participants {
		table.Append([]string{p.Name, shortID(p.ID), p.LastSeen.Format(domain.TimeLayout)})
	}
	table.Render()
}

func renderMessages(w io.Writer, messages []domain.Message) {
	table := newTable(w, []string{"Position", "Time", "Type", "From", "To", "Text", "ID"})
	for _, m := range messages {
		table.Append([]string{
			strconv.FormatUint(m.Position, 10),
			m.Time,
			string(m.Type),
			m.From,
			m.To,
			m.Text,
			shortID(m.ID),
		})
	}
	table.Render()
}

// shortID keeps the first 8 characters for readability.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)

	db, err := badger.Open(opts)
	if err != nil {
		if strings.Contains(err.Error(), "Log truncate required") {
			return nil, fmt.Errorf("database needs recovery, start the server once: %w", err)
		}
		return nil, err
	}
	return db, nil
}
