package core

// inodeKey identifies an inode across devices
type inodeKey struct {
	dev uint64
	ino uint64
}

// InodeMap remembers the archive path under which each regular file's
// inode was first stored. It lives for one build.
type InodeMap struct {
	paths map[inodeKey]string
}

// NewInodeMap returns an empty map
func NewInodeMap() *InodeMap {
	return &InodeMap{paths: make(map[inodeKey]string)}
}

// Lookup returns the first archive path recorded for md's inode. A nil map
// never matches.
func (m *InodeMap) Lookup(md Metadata) (string, bool) {
	if m == nil {
		return "", false
	}
	p, ok := m.paths[inodeKey{md.Dev, md.Ino}]
	return p, ok
}

// Record stores name as the first occurrence of md's inode unless one is
// already recorded
func (m *InodeMap) Record(md Metadata, name string) {
	key := inodeKey{md.Dev, md.Ino}
	if _, ok := m.paths[key]; !ok {
		m.paths[key] = name
	}
}

// Len returns the number of distinct inodes recorded
func (m *InodeMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.paths)
}
