package world

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/klauspost/compress/zstd"
)

const (
	diskOpDelete byte = 0
	diskOpSet    byte = 1

	diskHeaderSize = 9
)

// DiskStorageProvider keeps one append-only column log per chunk. Column
// payloads are gob encoded and zstd compressed.
type DiskStorageProvider struct {
	basePath string
	region   ServerRegion
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
}

// NewDiskStorageProvider creates a provider that persists chunk data beneath basePath.
func NewDiskStorageProvider(basePath string, region ServerRegion) (*DiskStorageProvider, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &DiskStorageProvider{
		basePath: basePath,
		region:   region,
		encoder:  encoder,
		decoder:  decoder,
	}, nil
}

func (p *DiskStorageProvider) NewStorage(key ChunkCoord, bounds Bounds, dim Dimensions) (BlockStorage, error) {
	path, err := p.chunkPath(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create chunk directory: %w", err)
	}
	return newDiskBlockStorage(path, p.encoder, p.decoder)
}

func (p *DiskStorageProvider) chunkPath(key ChunkCoord) (string, error) {
	local, err := p.region.GlobalToLocalChunk(key)
	if err != nil {
		return "", err
	}
	index := local.Z*p.region.ChunksPerAxis + local.X + 1
	dir := filepath.Join(p.basePath, strconv.Itoa(key.X), strconv.Itoa(key.Z))
	return filepath.Join(dir, fmt.Sprintf("chunk%02d.zst", index)), nil
}

type diskRecordMeta struct {
	offset int64
	size   uint32
}

type diskBlockStorage struct {
	file    *os.File
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	mu      sync.RWMutex
	records map[int]diskRecordMeta
}

func newDiskBlockStorage(path string, encoder *zstd.Encoder, decoder *zstd.Decoder) (*diskBlockStorage, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open chunk file: %w", err)
	}
	storage := &diskBlockStorage{
		file:    f,
		encoder: encoder,
		decoder: decoder,
		records: make(map[int]diskRecordMeta),
	}
	if err := storage.loadIndex(); err != nil {
		f.Close()
		return nil, err
	}
	return storage, nil
}

// loadIndex replays the log so the latest record per column wins.
func (s *diskBlockStorage) loadIndex() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind chunk file: %w", err)
	}

	header := make([]byte, diskHeaderSize)
	var offset int64
	for {
		if _, err := io.ReadFull(s.file, header); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return fmt.Errorf("truncated chunk header at %d: %w", offset, err)
			}
			return fmt.Errorf("read chunk header: %w", err)
		}
		op := header[0]
		index := int(binary.LittleEndian.Uint32(header[1:5]))
		size := binary.LittleEndian.Uint32(header[5:9])
		if _, err := s.file.Seek(int64(size), io.SeekCurrent); err != nil {
			return fmt.Errorf("seek past payload: %w", err)
		}
		if op == diskOpSet {
			s.records[index] = diskRecordMeta{offset: offset, size: size}
		} else {
			delete(s.records, index)
		}
		offset += diskHeaderSize + int64(size)
	}
}

func (s *diskBlockStorage) encodeColumn(blocks []Block) ([]byte, error) {
	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(blocks); err != nil {
		return nil, fmt.Errorf("encode column: %w", err)
	}
	return s.encoder.EncodeAll(payload.Bytes(), nil), nil
}

func (s *diskBlockStorage) decodeColumn(compressed []byte) ([]Block, error) {
	raw, err := s.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress column: %w", err)
	}
	var blocks []Block
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&blocks); err != nil {
		return nil, fmt.Errorf("decode column: %w", err)
	}
	return blocks, nil
}

func (s *diskBlockStorage) LoadColumn(index int) ([]Block, bool, error) {
	s.mu.RLock()
	meta, ok := s.records[index]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	payload := make([]byte, meta.size)
	if _, err := s.file.ReadAt(payload, meta.offset+diskHeaderSize); err != nil {
		return nil, false, fmt.Errorf("read payload at %d: %w", meta.offset, err)
	}
	blocks, err := s.decodeColumn(payload)
	if err != nil {
		return nil, false, err
	}
	return blocks, true, nil
}

func (s *diskBlockStorage) appendRecord(op byte, index int, payload []byte) (int64, error) {
	header := make([]byte, diskHeaderSize)
	header[0] = op
	binary.LittleEndian.PutUint32(header[1:5], uint32(index))
	binary.LittleEndian.PutUint32(header[5:9], uint32(len(payload)))

	offset, err := s.file.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("seek chunk end: %w", err)
	}
	if _, err := s.file.Write(header); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}
	if len(payload) > 0 {
		if _, err := s.file.Write(payload); err != nil {
			return 0, fmt.Errorf("write payload: %w", err)
		}
	}
	if err := s.file.Sync(); err != nil {
		return 0, fmt.Errorf("sync chunk file: %w", err)
	}
	return offset, nil
}

func (s *diskBlockStorage) SaveColumn(index int, blocks []Block) error {
	payload, err := s.encodeColumn(blocks)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	offset, err := s.appendRecord(diskOpSet, index, payload)
	if err != nil {
		return err
	}
	s.records[index] = diskRecordMeta{offset: offset, size: uint32(len(payload))}
	return nil
}

func (s *diskBlockStorage) Delete(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.appendRecord(diskOpDelete, index, nil); err != nil {
		return err
	}
	delete(s.records, index)
	return nil
}

func (s *diskBlockStorage) ForEach(fn func(index int, blocks []Block) bool) error {
	s.mu.RLock()
	indices := make([]int, 0, len(s.records))
	for idx := range s.records {
		indices = append(indices, idx)
	}
	s.mu.RUnlock()

	sort.Ints(indices)
	for _, idx := range indices {
		blocks, ok, err := s.LoadColumn(idx)
		if err != nil {
			log.Printf("disk block storage load index %d: %v", idx, err)
			continue
		}
		if !ok {
			continue
		}
		if !fn(idx, blocks) {
			break
		}
	}
	return nil
}

func (s *diskBlockStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
