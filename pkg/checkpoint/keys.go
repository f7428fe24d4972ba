package checkpoint

import (
	"fmt"
	"strings"

	"github.com/segmentio/ksuid"
)

// Key layout. KSUIDs sort by creation time, so iterating the prefix lists
// checkpoints oldest first.
//
//	cp/<id>/meta
//	cp/<id>/snapshot
//	cp/<id>/state/<seq>
const (
	keyPrefix   = "cp/"
	metaSuffix  = "/meta"
	maxStateSeq = 9999999999
)

func checkpointPrefix(id ksuid.KSUID) []byte {
	return []byte(keyPrefix + id.String() + "/")
}

func metaKey(id ksuid.KSUID) []byte {
	return []byte(keyPrefix + id.String() + metaSuffix)
}

func snapshotKey(id ksuid.KSUID) []byte {
	return []byte(keyPrefix + id.String() + "/snapshot")
}

func stateKey(id ksuid.KSUID, seq int) []byte {
	return []byte(fmt.Sprintf("%s%s/state/%010d", keyPrefix, id.String(), seq))
}

func statePrefix(id ksuid.KSUID) []byte {
	return []byte(keyPrefix + id.String() + "/state/")
}

// prefixEnd returns the smallest key greater than every key with the prefix.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

// idFromMetaKey extracts the checkpoint id from a meta key.
func idFromMetaKey(key []byte) (ksuid.KSUID, bool) {
	s := string(key)
	if !strings.HasPrefix(s, keyPrefix) || !strings.HasSuffix(s, metaSuffix) {
		return ksuid.Nil, false
	}
	id, err := ksuid.Parse(strings.TrimSuffix(strings.TrimPrefix(s, keyPrefix), metaSuffix))
	if err != nil {
		return ksuid.Nil, false
	}
	return id, true
}
