package world

import (
	"fmt"
	"sync"
)

// BlockStorage persists the block columns of one chunk.
type BlockStorage interface {
	LoadColumn(index int) ([]Block, bool, error)
	SaveColumn(index int, blocks []Block) error
	Delete(index int) error
	ForEach(fn func(index int, blocks []Block) bool) error
	Close() error
}

// StorageProvider creates block storage instances for chunks.
type StorageProvider interface {
	NewStorage(key ChunkCoord, bounds Bounds, dim Dimensions) (BlockStorage, error)
}

const (
	StorageMemory = "memory"
	StorageDisk   = "disk"
)

// NewStorageProvider builds the provider named by kind. Disk storage keeps
// compressed column logs beneath basePath.
func NewStorageProvider(kind, basePath string, region ServerRegion) (StorageProvider, error) {
	switch kind {
	case "", StorageMemory:
		return newMemoryStorageProvider(), nil
	case StorageDisk:
		if basePath == "" {
			return nil, fmt.Errorf("disk storage requires a base path")
		}
		return NewDiskStorageProvider(basePath, region)
	default:
		return nil, fmt.Errorf("unknown storage kind %q", kind)
	}
}

var (
	storageProvider StorageProvider = newMemoryStorageProvider()
	storageMu       sync.RWMutex
)

// SetStorageProvider overrides the global storage provider used for new chunks.
func SetStorageProvider(provider StorageProvider) {
	if provider == nil {
		provider = newMemoryStorageProvider()
	}
	storageMu.Lock()
	storageProvider = provider
	storageMu.Unlock()
}

func getStorageProvider() StorageProvider {
	storageMu.RLock()
	provider := storageProvider
	storageMu.RUnlock()
	return provider
}

func cloneColumn(blocks []Block) []Block {
	dup := make([]Block, len(blocks))
	copy(dup, blocks)
	return dup
}
