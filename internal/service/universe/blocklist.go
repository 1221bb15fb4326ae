package universe

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const blocklistTemplate = `# Blocked coins: one symbol per line, case insensitive.
# Lines starting with # are ignored.
#
# BTC
# ETH
`

// Blocklist holds symbols that are never analyzed.
type Blocklist struct {
	mu      sync.RWMutex
	path    string
	symbols map[string]struct{}
}

// LoadBlocklist reads path, writing a commented template first when the
// file does not exist yet. An empty path yields an empty list.
func LoadBlocklist(path string) (*Blocklist, error) {
	b := &Blocklist{path: path, symbols: map[string]struct{}{}}
	if path == "" {
		return b, nil
	}
	if err := b.Reload(); err != nil {
		return nil, err
	}
	return b, nil
}

// Reload rereads the file.
func (b *Blocklist) Reload() error {
	if b.path == "" {
		return nil
	}
	f, err := os.Open(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		if dir := filepath.Dir(b.path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create blocklist dir: %w", err)
			}
		}
		if err := os.WriteFile(b.path, []byte(blocklistTemplate), 0o644); err != nil {
			return fmt.Errorf("write blocklist template: %w", err)
		}
		b.set(map[string]struct{}{})
		return nil
	}
	if err != nil {
		return fmt.Errorf("open blocklist: %w", err)
	}
	defer f.Close()

	symbols := map[string]struct{}{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line != "" {
			symbols[strings.ToUpper(line)] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read blocklist: %w", err)
	}
	b.set(symbols)
	return nil
}

func (b *Blocklist) set(s map[string]struct{}) {
	b.mu.Lock()
	b.symbols = s
	b.mu.Unlock()
}

func (b *Blocklist) Blocked(symbol string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.symbols[strings.ToUpper(symbol)]
	return ok
}

func (b *Blocklist) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.symbols)
}
