// Package rand generates random data for tests
package rand

import (
	"bytes"
	"fmt"
	"math/rand"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// Bytes returns a random slice of bytes
func Bytes(n int) []byte {
	return randBytes(n)
}

// LetterBytes returns a random slice of bytes picked in the [0-9]|[a-z] range
func LetterBytes(n int) []byte {
	return randLetterBytes(n)
}

// LetterString returns a random string picked in the [0-9]|[a-z] range
func LetterString(n int) string {
	return string(randLetterBytes(n))
}

// Intn returns a random int in [0,n)
func Intn(n int) int {
	onceSource.Do(seed)
	randMutex.Lock()
	defer randMutex.Unlock()
	return rgen.Intn(n)
}

// Tree writes files with random content and sizes under root, spread over a few levels of directories.
// It returns the slash-separated paths of the files, relative to root.
func Tree(fs afero.Fs, root string, files, maxSize int) ([]string, error) {
	paths := make([]string, 0, files)
	for i := 0; i < files; i++ {
		dir := ""
		for depth := Intn(3); depth > 0; depth-- {
			dir = filepath.Join(dir, "d"+LetterString(2))
		}
		rel := filepath.Join(dir, fmt.Sprintf("f%03d-%s", i, LetterString(6)))
		p := filepath.Join(root, rel)
		if err := fs.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return nil, err
		}
		if err := afero.WriteFile(fs, p, Bytes(Intn(maxSize+1)), 0644); err != nil {
			return nil, err
		}
		paths = append(paths, filepath.ToSlash(rel))
	}
	return paths, nil
}

var (
	onceSource  sync.Once
	rgen        *rand.Rand
	onceLetters sync.Once
	randMutex   sync.Mutex
)

func seed() {
	src := rand.NewSource(time.Now().UnixNano())
	rgen = rand.New(src) // #nosec
}

func randBytes(n int) []byte {
	onceSource.Do(seed)
	buf := make([]byte, n)
	randMutex.Lock()
	_, _ = rgen.Read(buf)
	randMutex.Unlock()
	return buf
}

var letters []byte

func makeLetters() {
	// pads over 256 locations: "a" is slightly more frequent than other signs
	letters = bytes.Repeat([]byte("abcdefghijklmnopqrstuvwxyz0123456789a"), 7)
}

func randLetterBytes(n int) []byte {
	onceLetters.Do(makeLetters)
	buf := randBytes(n)
	for i, b := range buf {
		buf[i] = letters[b]
	}
	return buf
}
