package codec

import (
	"fmt"
	"strings"
)

// Describe renders a snapshot as an indented text tree. The output is
// deterministic for a given snapshot and only depends on schema content,
// never on delegate references.
func Describe(s Snapshot) string {
	var sb strings.Builder
	describe(&sb, s, 0)
	return sb.String()
}

func describe(sb *strings.Builder, s Snapshot, depth int) {
	switch ss := s.(type) {
	case nil:
		sb.WriteString("<nil>\n")
	case *PrimitiveSnapshot:
		sb.WriteString(ss.Type.String())
		sb.WriteByte('\n')
	case *RecursiveSnapshot:
		fmt.Fprintf(sb, "recursive %s\n", ss.Type)
	case *RecordSnapshot:
		fmt.Fprintf(sb, "record %s\n", ss.Type)
		pad := strings.Repeat("  ", depth+1)
		for i, f := range ss.Fields {
			fmt.Fprintf(sb, "%sfield %d %s: ", pad, i, f.ID)
			describe(sb, f.Snapshot, depth+1)
		}
		for _, sub := range ss.Registered {
			fmt.Fprintf(sb, "%sregistered %d %s: ", pad, sub.Tag, sub.Type)
			describe(sb, sub.Snapshot, depth+1)
		}
		for _, sub := range ss.Cached {
			fmt.Fprintf(sb, "%scached %s: ", pad, sub.Type)
			describe(sb, sub.Snapshot, depth+1)
		}
	default:
		fmt.Fprintf(sb, "unknown %T\n", s)
	}
}
