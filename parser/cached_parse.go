package parser

import (
	"bytes"
	"encoding/gob"
	"os"

	"github.com/shibukawa/fastest/parser/discoverycache"
)

// cachedParseFile wraps ParseFile with a discoverycache.Cache lookup/store
// around it. The cache key is the file's own path/mtime/size/content, so a
// cache entry is only ever reused for the exact file it was built from.
//
// Payloads are gob-encoded: unlike the worker wire protocol, this data never
// leaves the process, so there is no cross-language wire-format concern to
// ground a third-party codec on (see DESIGN.md's parser/ entry).
func cachedParseFile(cache *discoverycache.Cache) func(path, moduleQualifier, src string) FileResult {
	return func(path, moduleQualifier, src string) FileResult {
		content := []byte(src)

		info, statErr := os.Stat(path)
		if statErr != nil {
			return ParseFile(path, moduleQualifier, src)
		}

		if payload, hit, err := cache.Lookup(path, info.ModTime(), info.Size(), content); err == nil && hit {
			if fr, ok := decodeFileResult(payload); ok {
				return fr
			}
		}

		fr := ParseFile(path, moduleQualifier, src)

		if payload, ok := encodeFileResult(fr); ok {
			_ = cache.Store(path, info.ModTime(), info.Size(), content, payload)
		}

		return fr
	}
}

func encodeFileResult(fr FileResult) ([]byte, bool) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(fr); err != nil {
		return nil, false
	}

	return buf.Bytes(), true
}

func decodeFileResult(payload []byte) (FileResult, bool) {
	var fr FileResult
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&fr); err != nil {
		return FileResult{}, false
	}

	return fr, true
}
