package catalog

// PlatformIndex is an inverted index from normalized platform to the
// canonical keys on that platform, in insertion order. It bounds fuzzy
// matching to same-platform candidates. One index belongs to one run.
type PlatformIndex struct {
	buckets    map[string][]string
	platformOf map[string]string
}

func NewPlatformIndex() *PlatformIndex {
	return &PlatformIndex{
		buckets:    make(map[string][]string),
		platformOf: make(map[string]string),
	}
}

// Upsert files key under platform, moving it when its platform changed.
func (i *PlatformIndex) Upsert(key, platform string) {
	bucket := NormalizePlatform(platform)
	if current, ok := i.platformOf[key]; ok {
		if current == bucket {
			return
		}
		i.remove(key, current)
	}
	i.platformOf[key] = bucket
	i.buckets[bucket] = append(i.buckets[bucket], key)
}

// Candidates returns the keys filed under the platform bucket of platform.
// The returned slice must not be modified.
func (i *PlatformIndex) Candidates(platform string) []string {
	return i.buckets[NormalizePlatform(platform)]
}

func (i *PlatformIndex) Len() int {
	return len(i.platformOf)
}

func (i *PlatformIndex) remove(key, bucket string) {
	keys := i.buckets[bucket]
	for idx, k := range keys {
		if k != key {
			continue
		}
		next := make([]string, 0, len(keys)-1)
		next = append(next, keys[:idx]...)
		next = append(next, keys[idx+1:]...)
		if len(next) == 0 {
			delete(i.buckets, bucket)
		} else {
			i.buckets[bucket] = next
		}
		break
	}
	delete(i.platformOf, key)
}
