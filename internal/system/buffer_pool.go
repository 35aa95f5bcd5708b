package system

import (
	"bytes"
	"sync"
)

// BufferPool переиспользует bytes.Buffer для PCM и JPEG,
// чтобы не нагружать GC на каждом запуске озвучки и экспорте.
// Буферы разбиты по классам ёмкости (степени двойки).
type BufferPool struct {
	pools map[int]*sync.Pool
	mu    sync.RWMutex
}

var globalPool = &BufferPool{
	pools: make(map[int]*sync.Pool),
}

// GetBuffer возвращает пустой буфер ёмкостью не меньше size.
func GetBuffer(size int) *bytes.Buffer {
	return globalPool.Get(size)
}

// PutBuffer возвращает буфер в пул.
func PutBuffer(buf *bytes.Buffer) {
	globalPool.Put(buf)
}

// sizeClass округляет size вверх до степени двойки (минимум 4 KiB).
func sizeClass(size int) int {
	class := 4096
	for class < size {
		class <<= 1
	}
	return class
}

func (p *BufferPool) Get(size int) *bytes.Buffer {
	key := sizeClass(size)
	p.mu.RLock()
	pool, exists := p.pools[key]
	p.mu.RUnlock()

	if !exists {
		p.mu.Lock()
		// Double check
		pool, exists = p.pools[key]
		if !exists {
			pool = &sync.Pool{
				New: func() interface{} {
					return bytes.NewBuffer(make([]byte, 0, key))
				},
			}
			p.pools[key] = pool
		}
		p.mu.Unlock()
	}

	buf := pool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func (p *BufferPool) Put(buf *bytes.Buffer) {
	if buf == nil {
		return
	}
	// Буфер мог вырасти; кладём его в класс, который он гарантированно покрывает.
	key := sizeClass(buf.Cap())
	if key != buf.Cap() {
		key >>= 1
	}
	p.mu.RLock()
	pool, exists := p.pools[key]
	p.mu.RUnlock()

	if exists {
		buf.Reset()
		pool.Put(buf)
	}
}
