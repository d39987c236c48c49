// Configuration persistence. Updates rewrite only the targeted section so
// comments and formatting elsewhere in the file survive.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SaveDBPath updates the db_path value in the config file.
func SaveDBPath(configPath, dbPath string) error {
	return saveRootKey(configPath, "db_path", &yaml.Node{Kind: yaml.ScalarNode, Value: dbPath})
}

// SaveDefaultVersion updates the default_version value in the config file.
func SaveDefaultVersion(configPath, version string) error {
	node := &yaml.Node{Kind: yaml.ScalarNode, Value: version, Style: yaml.DoubleQuotedStyle}
	return saveRootKey(configPath, "default_version", node)
}

// SaveCache updates the cache section in the config file.
func SaveCache(configPath string, cache CacheConfig) error {
	node := &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Value: "enabled"},
			{Kind: yaml.ScalarNode, Value: fmt.Sprintf("%t", cache.Enabled)},
			{Kind: yaml.ScalarNode, Value: "ttl"},
			{Kind: yaml.ScalarNode, Value: cache.TTL.String()},
			{Kind: yaml.ScalarNode, Value: "cleanup_interval"},
			{Kind: yaml.ScalarNode, Value: cache.CleanupInterval.String()},
		},
	}
	return saveRootKey(configPath, "cache", node)
}

// saveRootKey replaces (or appends) a single top-level key in the config
// file. Parsing into yaml.Node preserves comments in other sections.
func saveRootKey(configPath, key string, value *yaml.Node) error {
	// Read existing file content
	data, err := os.ReadFile(configPath) //nolint:gosec // G304: path is user-controlled config path
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}

	// Parse into yaml.Node to preserve comments
	var doc yaml.Node
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	// Update or create the section
	if doc.Kind == 0 {
		// Empty or new file - create document structure
		doc = yaml.Node{
			Kind: yaml.DocumentNode,
			Content: []*yaml.Node{
				{
					Kind: yaml.MappingNode,
					Content: []*yaml.Node{
						{Kind: yaml.ScalarNode, Value: key},
						value,
					},
				},
			},
		}
	} else if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		root := doc.Content[0]
		if root.Kind == yaml.MappingNode {
			// Find and replace the key, or append it
			found := false
			for i := 0; i < len(root.Content)-1; i += 2 {
				if root.Content[i].Value == key {
					root.Content[i+1] = value
					found = true
					break
				}
			}
			if !found {
				root.Content = append(root.Content,
					&yaml.Node{Kind: yaml.ScalarNode, Value: key},
					value,
				)
			}
		}
	}

	// Marshal back to YAML
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_ = encoder.Close()

	return writeAtomically(configPath, buf.Bytes())
}

// writeAtomically writes to a temp file in the target directory and renames
// it into place.
func writeAtomically(configPath string, content []byte) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".routecard.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(content); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, configPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	return nil
}
