package ticket

import (
	"fmt"
	"slices"
)

const propertiesVersion = 1

// writeProperties appends the property bag: version, item count, then key/value pairs
// in key order so equal bags encode identically.
func writeProperties(w *writer, p *Properties) {
	w.int32(propertiesVersion)
	if p == nil {
		w.int32(0)
		return
	}
	keys := make([]string, 0, len(p.Items))
	for k := range p.Items {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	w.int32(int32(len(keys)))
	for _, k := range keys {
		w.string(k)
		w.string(p.Items[k])
	}
}

func readProperties(r *reader) *Properties {
	version := r.int32()
	if r.err == nil && version != propertiesVersion {
		r.fail(fmt.Errorf("%w: properties version %d", ErrMalformed, version))
	}
	// Each pair occupies at least two bytes.
	count := r.count(2)
	p := &Properties{Items: make(map[string]string, count)}
	for i := 0; i < count && r.err == nil; i++ {
		k := r.string()
		v := r.string()
		p.Items[k] = v
	}
	return p
}
