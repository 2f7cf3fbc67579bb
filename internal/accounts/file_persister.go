package accounts

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// FilePersister is the default Persister: a newline-separated list of
// "pseudo;hash" records, the exact on-disk layout of the reference
// implementation's load_accounts/save_accounts (data/accounts.dat), kept
// unchanged even though the hash itself is now a real bcrypt digest rather
// than the reference's toy hash (see DESIGN.md).
type FilePersister struct {
	Path string
}

// Load tolerates a missing file, starting from an empty account list, the
// same behavior as the reference implementation's load_accounts.
func (p FilePersister) Load() ([]Record, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("accounts: open %s: %w", p.Path, err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ";", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("accounts: %s: malformed record %q", p.Path, line)
		}
		records = append(records, Record{Pseudo: parts[0], Hash: parts[1]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("accounts: %s: %w", p.Path, err)
	}
	return records, nil
}

// Save overwrites the file with the full record set.
func (p FilePersister) Save(records []Record) error {
	f, err := os.Create(p.Path)
	if err != nil {
		return fmt.Errorf("accounts: create %s: %w", p.Path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, r := range records {
		if _, err := fmt.Fprintf(w, "%s;%s\n", r.Pseudo, r.Hash); err != nil {
			return fmt.Errorf("accounts: write %s: %w", p.Path, err)
		}
	}
	return w.Flush()
}
