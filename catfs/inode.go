package catfs

import "sync"

// inodeTable hands out stable inode numbers per node path. Inode 1 is the
// root directory.
type inodeTable struct {
	mu      sync.Mutex
	highest uint64
	byPath  map[string]uint64
}

func newInodeTable() *inodeTable {
	return &inodeTable{highest: 1, byPath: map[string]uint64{"/": 1}}
}

// For returns the inode of path, allocating one on first use.
func (t *inodeTable) For(path string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ino, ok := t.byPath[path]; ok {
		return ino
	}
	t.highest++
	t.byPath[path] = t.highest
	return t.highest
}
