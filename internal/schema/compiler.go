package schema

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	js "github.com/santhosh-tekuri/jsonschema/v5"
)

// Compiler compiles JSON Schemas once and caches them by content hash.
type Compiler struct {
	mu           sync.Mutex
	compiler     *js.Compiler
	cache        *expirable.LRU[string, *js.Schema]
	refAllowlist []string // allowed URL patterns for $ref resolution
}

// NewCompilerWithCache creates a new compiler with cache
func NewCompilerWithCache(maxSize int) *Compiler {
	return NewCompilerWithCacheAndAllowlist(maxSize, nil)
}

// NewCompilerWithCacheAndAllowlist creates a new compiler with cache and $ref allowlist
func NewCompilerWithCacheAndAllowlist(maxSize int, allowlist []string) *Compiler {
	c := js.NewCompiler()
	c.ExtractAnnotations = true

	return &Compiler{
		compiler:     c,
		cache:        expirable.NewLRU[string, *js.Schema](maxSize, nil, time.Hour),
		refAllowlist: allowlist,
	}
}

// matchesPattern checks if a URL matches an allowlist pattern
// Supports:
// - Exact match: "https://example.com/schema.json"
// - Prefix match: "https://example.com/schemas/*"
// - Host match: "https://example.com"
func matchesPattern(urlStr, pattern string) bool {
	if urlStr == pattern {
		return true
	}

	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(urlStr, strings.TrimSuffix(pattern, "*"))
	}

	u1, err1 := url.Parse(urlStr)
	u2, err2 := url.Parse(pattern)
	if err1 == nil && err2 == nil && u1.Host != "" {
		return u1.Host == u2.Host
	}

	return false
}

func key(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Prepare compiles and caches a schema
func (c *Compiler) Prepare(ctx context.Context, schema map[string]interface{}) error {
	_, err := c.compile(schema)
	return err
}

func (c *Compiler) compile(schema map[string]interface{}) (*js.Schema, error) {
	schemaBytes, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	k := key(schemaBytes)
	if compiled, ok := c.cache.Get(k); ok {
		return compiled, nil
	}

	if len(c.refAllowlist) > 0 {
		if err := c.validateRefs(schema); err != nil {
			return nil, fmt.Errorf("$ref validation failed: %w", err)
		}
	}

	// js.Compiler is not safe for concurrent AddResource/Compile
	c.mu.Lock()
	defer c.mu.Unlock()

	resourceURL := fmt.Sprintf("mem://schema/%s.json", k)
	if err := c.compiler.AddResource(resourceURL, bytes.NewReader(schemaBytes)); err != nil {
		return nil, fmt.Errorf("failed to add resource: %w", err)
	}

	compiled, err := c.compiler.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	c.cache.Add(k, compiled)
	return compiled, nil
}

// validateRefs recursively validates all $ref URLs in a schema against the allowlist
func (c *Compiler) validateRefs(schema interface{}) error {
	switch v := schema.(type) {
	case map[string]interface{}:
		if ref, ok := v["$ref"].(string); ok && !strings.HasPrefix(ref, "#") {
			if !c.isRefAllowed(ref) {
				return fmt.Errorf("$ref URL not allowed: %s (not in allowlist)", ref)
			}
		}
		for _, val := range v {
			if err := c.validateRefs(val); err != nil {
				return err
			}
		}
	case []interface{}:
		for _, item := range v {
			if err := c.validateRefs(item); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Compiler) isRefAllowed(refURL string) bool {
	if len(c.refAllowlist) == 0 {
		return true
	}
	for _, pattern := range c.refAllowlist {
		if matchesPattern(refURL, pattern) {
			return true
		}
	}
	return false
}

// Validate validates a value against a schema
func (c *Compiler) Validate(ctx context.Context, schema map[string]interface{}, value interface{}) error {
	compiled, err := c.compile(schema)
	if err != nil {
		return err
	}

	// Round-trip so typed Go values validate like decoded JSON
	valueBytes, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	var valueRaw interface{}
	if err := json.Unmarshal(valueBytes, &valueRaw); err != nil {
		return fmt.Errorf("failed to unmarshal value: %w", err)
	}

	if err := compiled.Validate(valueRaw); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// Matches reports whether value satisfies schema. Compile errors count as a mismatch.
func (c *Compiler) Matches(ctx context.Context, schema map[string]interface{}, value interface{}) bool {
	return c.Validate(ctx, schema, value) == nil
}
