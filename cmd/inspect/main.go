// Command inspect dumps the realtime keyspace (queued notifications, cache
// entries, presence records) from a Badger directory as a table. Intended
// for operators poking at a stopped instance's store.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"

	"tribehub/domain"
)

func main() {
	dbPath := flag.String("db", "./data", "Path to badger DB")
	prefix := flag.String("prefix", "nq:", "Prefix to scan (nq:, cache:, act:, loc:, pref:)")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Recipient", "Type", "Title", "Created At", "Size"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	var count int
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			err := item.Value(func(v []byte) error {
				count++
				table.Append(row(string(item.Key()), v))
				return nil
			})
			if err != nil {
				fmt.Printf("Error reading key %s: %v\n", string(item.Key()), err)
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal("Scan failed: ", err)
	}

	table.Render()
	color.Green.Printf("\n%d entries under prefix %q\n", count, *prefix)
}

// row renders queued notifications with their fields and everything else
// with just key and size.
func row(key string, value []byte) []string {
	var n domain.Notification
	if err := json.Unmarshal(value, &n); err == nil && n.Recipient != "" {
		return []string{key, n.Recipient, n.Type, n.Title,
			n.CreatedAt.Format("2006-01-02 15:04:05"), fmt.Sprintf("%dB", len(value))}
	}
	return []string{key, "", "", "", "", fmt.Sprintf("%dB", len(value))}
}
