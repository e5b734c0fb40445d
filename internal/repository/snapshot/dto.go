package snapshot

import (
	"encoding/binary"
	"math"

	"github.com/kailas-cloud/paperrag/internal/domain"
	domdoc "github.com/kailas-cloud/paperrag/internal/domain/document"
	domsnap "github.com/kailas-cloud/paperrag/internal/domain/snapshot"
)

// formatVersion is bumped whenever the stored layout changes incompatibly.
const formatVersion = 1

type snapshotDTO struct {
	Format     int                 `json:"format"`
	Model       domain.ModelVersion `json:"model"`
	Instruction string              `json:"instruction,omitempty"`
	Generation  uint64              `json:"generation"`
	Entries     []entryDTO          `json:"entries"`
}

type entryDTO struct {
	ID          string             `json:"id"`
	Kind        string             `json:"kind"`
	Title       string             `json:"title"`
	Text        string             `json:"text"`
	Metadata    map[string]string  `json:"metadata,omitempty"`
	Numerics    map[string]float64 `json:"numerics,omitempty"`
	ContentHash string             `json:"content_hash"`
	Generation  uint64             `json:"generation"`
	// Embedding is little-endian float32, base64 in JSON.
	Embedding []byte `json:"embedding"`
}

func toDTO(s domsnap.Snapshot) snapshotDTO {
	entries := make([]entryDTO, len(s.Entries))
	for i, e := range s.Entries {
		d := e.Document
		entries[i] = entryDTO{
			ID:          d.ID(),
			Kind:        string(d.Kind()),
			Title:       d.Title(),
			Text:        d.Text(),
			Metadata:    d.Metadata(),
			Numerics:    d.Numerics(),
			ContentHash: d.ContentHash(),
			Generation:  e.Generation,
			Embedding:   vectorToBytes(d.Embedding()),
		}
	}
	return snapshotDTO{
		Format:      formatVersion,
		Model:       s.Version,
		Instruction: s.Instruction,
		Generation:  s.Generation,
		Entries:     entries,
	}
}

func fromDTO(dto snapshotDTO) domsnap.Snapshot {
	entries := make([]domsnap.Entry, len(dto.Entries))
	for i, e := range dto.Entries {
		entries[i] = domsnap.Entry{
			Document: domdoc.Reconstruct(
				e.ID, domdoc.SourceKind(e.Kind), e.Title, e.Text,
				e.Metadata, e.Numerics, e.ContentHash, bytesToVector(e.Embedding),
			),
			Generation: e.Generation,
		}
	}
	return domsnap.Snapshot{
		Version:     dto.Model,
		Instruction: dto.Instruction,
		Generation:  dto.Generation,
		Entries:     entries,
	}
}

// vectorToBytes serializes []float32 (4 bytes per float, little-endian).
func vectorToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToVector deserializes little-endian bytes back to []float32.
func bytesToVector(b []byte) []float32 {
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
