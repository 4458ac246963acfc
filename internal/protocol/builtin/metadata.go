package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nerrad567/gray-logic-protocols/internal/protocol"
	"github.com/nerrad567/gray-logic-protocols/internal/protocol/metadata"
)

// codecIDByExt maps file extensions to metadata codec IDs.
var codecIDByExt = map[string]string{
	".json": metadata.JSONCodecID,
	".yaml": metadata.YAMLCodecID,
	".yml":  metadata.YAMLCodecID,
}

// FileMetadata returns a provider that reads a device model from path on
// every call, decoding it with the support's metadata codec for the file
// extension. Edits to the file are picked up without a restart.
//
// A missing file is an empty provider, not an error.
func FileMetadata(support *protocol.Support, path string) protocol.Provider[*metadata.DeviceMetadata] {
	return func(ctx context.Context) (*metadata.DeviceMetadata, error) {
		ext := strings.ToLower(filepath.Ext(path))
		id, ok := codecIDByExt[ext]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedMetadataFormat, path)
		}
		mc, ok := support.MetadataCodecByID(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s (codec %s not enabled)", ErrUnsupportedMetadataFormat, path, id)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("reading default metadata: %w", err)
		}

		md, err := mc.Decode(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("decoding default metadata %s: %w", path, err)
		}
		return md, nil
	}
}
