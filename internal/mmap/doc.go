// Package mmap maps local container files read-only into memory.
//
//	m, err := mmap.Open("circuit.sonata")
//	if err != nil { ... }
//	defer m.Close()
//	_ = m.Advise(mmap.AccessRandom)
//	data := m.Bytes()
//
// Unix uses mmap(2) and madvise(2); Windows uses MapViewOfFile and ignores
// access hints. Close is idempotent; callers must not touch Bytes() after it.
package mmap
