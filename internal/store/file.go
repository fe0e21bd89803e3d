// Package store는 단일 포지션 스냅샷을 파일에 영속화합니다.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/assist-by/odyssey/internal/domain"
	"github.com/assist-by/odyssey/internal/logger"
)

// snapshot은 디스크에 기록되는 상태 형식입니다
type snapshot struct {
	InPosition bool             `json:"in_position"`
	Position   *domain.Position `json:"position"`
}

// FileStore는 JSON 파일 기반 포지션 저장소입니다.
// 쓰기는 임시 파일 작성 후 rename으로 원자적으로 교체됩니다.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore는 새로운 FileStore를 생성합니다
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path는 상태 파일 경로를 반환합니다
func (s *FileStore) Path() string {
	return s.path
}

// Load는 저장된 포지션을 읽습니다. 파일이 없거나 손상된 경우 포지션 없음으로 취급합니다.
func (s *FileStore) Load() (*domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("상태 파일 읽기 실패: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		logger.Warnf("상태 파일 손상, 포지션 없음으로 처리: %s (%v)", s.path, err)
		return nil, nil
	}

	if !snap.InPosition || snap.Position == nil {
		return nil, nil
	}
	return snap.Position, nil
}

// Save는 포지션을 저장합니다. nil이면 포지션 없음을 기록합니다.
func (s *FileStore) Save(pos *domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.write(snapshot{InPosition: pos != nil, Position: pos})
}

// Clear는 포지션 없음 상태를 기록합니다
func (s *FileStore) Clear() error {
	return s.Save(nil)
}

func (s *FileStore) write(snap snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("상태 직렬화 실패: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("상태 디렉토리 생성 실패: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("임시 파일 생성 실패: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("상태 쓰기 실패: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("상태 동기화 실패: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("임시 파일 닫기 실패: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("상태 파일 교체 실패: %w", err)
	}
	return nil
}
