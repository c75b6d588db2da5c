package descriptor

import (
	"strings"

	"github.com/spaolacci/murmur3"
)

const fingerprintSeed = 47

// fingerprint hashes the stored layout of d: each key with its Go type and
// class, in declaration order, followed by the discriminator.
func fingerprint(d *TypeDescriptor) uint32 {
	var sb strings.Builder

	for _, f := range d.Fields {
		sb.WriteString(f.Key)
		sb.WriteByte(':')
		sb.WriteString(f.Type.String())
		sb.WriteByte(':')
		sb.WriteString(f.Class.String())
		sb.WriteByte(',')
	}

	sb.WriteString(d.Discriminator)

	return murmur3.Sum32WithSeed([]byte(sb.String()), fingerprintSeed)
}
