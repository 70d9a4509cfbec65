package objectkey

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Generator defines the interface for object key generation strategies
type Generator interface {
	// GenerateKey creates an object key for storage backends
	GenerateKey(objectID uuid.UUID, metadata *KeyMetadata) string
}

// KeyMetadata contains information that influences key generation
type KeyMetadata struct {
	Folder      string
	FileName    string
	ContentType string
}

// FolderGenerator places every object directly under its folder:
// event-banners/123e4567-e89b-12d3-a456-426614174000-poster.png
type FolderGenerator struct{}

func NewFolderGenerator() *FolderGenerator {
	return &FolderGenerator{}
}

func (g *FolderGenerator) GenerateKey(objectID uuid.UUID, metadata *KeyMetadata) string {
	name := objectID.String()
	if fileName := fileNameOf(metadata); fileName != "" {
		name = fmt.Sprintf("%s-%s", name, fileName)
	}
	return join(folderOf(metadata), name)
}

// ShardedGenerator provides Git-style sharding below the folder:
// event-banners/12/3e4567e89b12d3a456426614174000-poster.png
type ShardedGenerator struct {
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
}

func NewShardedGenerator() *ShardedGenerator {
	return &ShardedGenerator{
		ShardLength: 2,
	}
}

func (g *ShardedGenerator) GenerateKey(objectID uuid.UUID, metadata *KeyMetadata) string {
	idStr := strings.ReplaceAll(objectID.String(), "-", "")

	shardLength := g.ShardLength
	if shardLength <= 0 || shardLength > len(idStr) {
		shardLength = 2
	}

	shardDir := idStr[:shardLength]
	name := idStr[shardLength:]
	if fileName := fileNameOf(metadata); fileName != "" {
		name = fmt.Sprintf("%s-%s", name, fileName)
	}

	return join(folderOf(metadata), shardDir, name)
}

// CustomFuncGenerator allows users to provide their own key generation function
type CustomFuncGenerator struct {
	GenerateFunc func(objectID uuid.UUID, metadata *KeyMetadata) string
}

func NewCustomFuncGenerator(fn func(objectID uuid.UUID, metadata *KeyMetadata) string) *CustomFuncGenerator {
	return &CustomFuncGenerator{
		GenerateFunc: fn,
	}
}

func (g *CustomFuncGenerator) GenerateKey(objectID uuid.UUID, metadata *KeyMetadata) string {
	return g.GenerateFunc(objectID, metadata)
}

// NewKey generates a key for a fresh random object id.
func NewKey(g Generator, metadata *KeyMetadata) string {
	return g.GenerateKey(uuid.New(), metadata)
}

// NewDefaultGenerator returns the generator used when none is configured
func NewDefaultGenerator() Generator {
	return NewFolderGenerator()
}

func folderOf(metadata *KeyMetadata) string {
	if metadata == nil {
		return ""
	}
	return sanitizeFolder(metadata.Folder)
}

func fileNameOf(metadata *KeyMetadata) string {
	if metadata == nil || metadata.FileName == "" {
		return ""
	}
	return sanitizeFilename(metadata.FileName)
}

func join(parts ...string) string {
	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "/")
}

// Helper functions for path sanitization
func sanitizeFilename(filename string) string {
	// Keep only the base name; clients sometimes send full paths
	filename = path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if filename == "." || filename == "/" {
		return ""
	}
	replacer := strings.NewReplacer(
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
		"#", "_",
		"%", "_",
	)
	return replacer.Replace(filename)
}

func sanitizeFolder(folder string) string {
	segments := strings.Split(strings.ReplaceAll(folder, "\\", "/"), "/")
	out := segments[:0]
	for _, s := range segments {
		if s == "" || s == "." || s == ".." {
			continue
		}
		out = append(out, sanitizePathComponent(s))
	}
	return strings.Join(out, "/")
}

func sanitizePathComponent(component string) string {
	replacer := strings.NewReplacer(
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return strings.ToLower(replacer.Replace(component))
}
