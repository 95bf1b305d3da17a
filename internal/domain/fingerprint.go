package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultFingerprintPrefix bounds how much normalized content is hashed.
const DefaultFingerprintPrefix = 8192

// Fingerprinter derives stable cache keys.
type Fingerprinter struct {
	Namespace    string
	TenantScoped bool
	PrefixBytes  int
}

// DefaultNamespace prefixes keys when no namespace is configured.
const DefaultNamespace = "taskcache"

func (f Fingerprinter) namespace() string {
	if f.Namespace == "" {
		return DefaultNamespace
	}
	return f.Namespace
}

// Prefix is shared by every key this fingerprinter produces.
func (f Fingerprinter) Prefix() string {
	return f.namespace() + ":"
}

// Scope returns the namespace portion of a key for a tenant.
func (f Fingerprinter) Scope(tenantID string) string {
	ns := f.namespace()
	if !f.TenantScoped {
		return ns + ":shared"
	}
	if tenantID == "" {
		tenantID = "_"
	}
	return ns + ":t=" + tenantID
}

// Key returns "<scope>:<task_type>:<sha256>" for the lookup. The hash covers
// the document type, the first PrefixBytes of normalized content together
// with the full normalized length, the few-shot examples and the sorted
// options. PrefixBytes <= 0 hashes all content.
func (f Fingerprinter) Key(lookup CacheLookup) string {
	prefix, length := normalizePrefix(lookup.Content, f.PrefixBytes)

	docType := lookup.DocumentType
	if docType == "" {
		docType = DocUnknown
	}

	h := sha256.New()
	writeField(h, string(lookup.TaskType))
	writeField(h, string(docType))
	writeField(h, strconv.Itoa(length))
	writeField(h, prefix)

	writeField(h, "examples="+strconv.Itoa(len(lookup.FewShotExamples)))
	for _, ex := range lookup.FewShotExamples {
		writeField(h, ex.Input)
		writeField(h, ex.Output)
	}

	keys := make([]string, 0, len(lookup.Options))
	for k := range lookup.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeField(h, k+"="+lookup.Options[k])
	}

	return f.Scope(lookup.TenantID) + ":" + string(lookup.TaskType) + ":" + hex.EncodeToString(h.Sum(nil))
}

// writeField writes a length-prefixed value so adjacent fields cannot collide.
func writeField(h hash.Hash, v string) {
	h.Write([]byte(strconv.Itoa(len(v))))
	h.Write([]byte{':'})
	h.Write([]byte(v))
}

// NormalizeContent collapses runs of whitespace and trims the ends.
func NormalizeContent(content string) string {
	normalized, _ := normalizePrefix(content, 0)
	return normalized
}

// normalizePrefix normalizes content in one pass, keeping at most limit bytes
// of the result (all of it when limit <= 0) and returning the full normalized
// length.
func normalizePrefix(content string, limit int) (string, int) {
	var b strings.Builder
	if limit > 0 {
		b.Grow(min(limit, len(content)))
	} else {
		b.Grow(len(content))
	}

	length := 0
	emit := func(s string) {
		length += len(s)
		if limit > 0 {
			room := limit - b.Len()
			if room <= 0 {
				return
			}
			if len(s) > room {
				s = s[:room]
			}
		}
		b.WriteString(s)
	}

	gap := false
	for i := 0; i < len(content); {
		r, size := utf8.DecodeRuneInString(content[i:])
		if unicode.IsSpace(r) {
			gap = length > 0
			i += size
			continue
		}
		if gap {
			emit(" ")
			gap = false
		}
		emit(content[i : i+size])
		i += size
	}
	return b.String(), length
}
