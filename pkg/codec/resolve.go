package codec

import (
	"go.uber.org/zap"

	"github.com/ssargent/statecodec/pkg/schema"
)

// Resolve reconciles the codec with the snapshot of a previous codec for the
// same record type.
//
// Fields are put back into the old wire order, with fields the old schema did
// not have appended after them. Registered subclasses keep the tags they had
// in the old snapshot; new registrations take tags above the highest old one,
// so tags of dropped registrations are never reused. Every subclass in the
// old cache tier gets a cache codec again so old self-describing data stays
// readable, even if that subclass is now registered.
//
// The layout is always derived from the codec as constructed, so resolving
// twice against the same snapshot yields the same tables and verdict. On
// RequiresMigration the codec's own tables are left unchanged.
func (c *RecordCodec) Resolve(old Snapshot) Verdict {
	prev, ok := old.(*RecordSnapshot)
	if !ok {
		c.logger.Info("snapshot is not a record snapshot", zap.String("type", c.typ.Name))
		return RequiresMigration
	}
	if prev.Type != c.typ.Name {
		c.logger.Info("record type changed",
			zap.String("type", c.typ.Name),
			zap.String("previous", prev.Type))
		return RequiresMigration
	}

	fields, fieldVerdict := c.resolveFields(prev)
	if fieldVerdict == RequiresMigration {
		return RequiresMigration
	}
	tags, tagVerdict := c.resolveRegistered(prev)
	if tagVerdict == RequiresMigration {
		return RequiresMigration
	}
	cache, cacheVerdict := c.resolveCache(prev)
	if cacheVerdict == RequiresMigration {
		return RequiresMigration
	}

	c.fields = fields
	c.tags = tags
	c.byTag = make(map[int]string, len(tags))
	for name, tag := range tags {
		c.byTag[tag] = name
	}
	for name, sc := range cache {
		c.cache[name] = sc
	}

	verdict := worse(worse(fieldVerdict, tagVerdict), cacheVerdict)
	c.logger.Debug("resolved record codec",
		zap.String("type", c.typ.Name),
		zap.Stringer("verdict", verdict))
	return verdict
}

func (c *RecordCodec) resolveFields(prev *RecordSnapshot) ([]fieldSlot, Verdict) {
	index := make(map[schema.FieldID]int, len(c.baseline))
	for i, s := range c.baseline {
		index[s.field.ID] = i
	}

	verdict := Compatible
	used := make([]bool, len(c.baseline))
	layout := make([]fieldSlot, 0, len(c.baseline))
	for i, f := range prev.Fields {
		j, ok := index[f.ID]
		if !ok || used[j] {
			c.logger.Info("field removed",
				zap.String("type", c.typ.Name),
				zap.Stringer("field", f.ID))
			return nil, RequiresMigration
		}
		used[j] = true

		nested := Resolve(c.baseline[j].codec, f.Snapshot)
		if nested == RequiresMigration {
			c.logger.Info("field requires migration",
				zap.String("type", c.typ.Name),
				zap.Stringer("field", f.ID))
			return nil, RequiresMigration
		}
		verdict = worse(verdict, nested)
		if i != j {
			verdict = worse(verdict, CompatibleWithReconfigure)
		}
		layout = append(layout, c.baseline[j])
	}

	for j, s := range c.baseline {
		if !used[j] {
			if len(layout) != j {
				verdict = worse(verdict, CompatibleWithReconfigure)
			}
			layout = append(layout, s)
		}
	}
	return layout, verdict
}

func (c *RecordCodec) resolveRegistered(prev *RecordSnapshot) (map[string]int, Verdict) {
	verdict := Compatible
	tags := make(map[string]int, len(c.tagged))
	taken := make(map[int]bool, len(prev.Registered))
	next := 0

	for _, sub := range prev.Registered {
		if sub.Tag < 0 || taken[sub.Tag] {
			c.logger.Warn("snapshot has an invalid subclass tag",
				zap.String("type", c.typ.Name),
				zap.String("subclass", sub.Type),
				zap.Int("tag", sub.Tag))
			return nil, RequiresMigration
		}
		taken[sub.Tag] = true
		if sub.Tag >= next {
			next = sub.Tag + 1
		}

		sc, ok := c.subclasses[sub.Type]
		if !ok {
			c.logger.Info("registered subclass dropped",
				zap.String("type", c.typ.Name),
				zap.String("subclass", sub.Type),
				zap.Int("tag", sub.Tag))
			continue
		}
		nested := Resolve(sc, sub.Snapshot)
		if nested == RequiresMigration {
			c.logger.Info("registered subclass requires migration",
				zap.String("type", c.typ.Name),
				zap.String("subclass", sub.Type))
			return nil, RequiresMigration
		}
		verdict = worse(verdict, nested)
		tags[sub.Type] = sub.Tag
	}

	for i, name := range c.tagged {
		if _, ok := tags[name]; !ok {
			tags[name] = next
			next++
		}
		if tags[name] != i {
			verdict = worse(verdict, CompatibleWithReconfigure)
		}
	}
	return tags, verdict
}

func (c *RecordCodec) resolveCache(prev *RecordSnapshot) (map[string]*RecordCodec, Verdict) {
	if len(prev.Cached) == 0 {
		return nil, Compatible
	}

	verdict := CompatibleWithReconfigure
	cache := make(map[string]*RecordCodec, len(prev.Cached))
	for _, sub := range prev.Cached {
		sc, ok := c.cache[sub.Type]
		if !ok {
			var err error
			sc, err = c.newSubclassCodec(sub.Type)
			if err != nil {
				c.logger.Warn("cached subclass cannot be rebuilt",
					zap.String("type", c.typ.Name),
					zap.String("subclass", sub.Type),
					zap.Error(err))
				return nil, RequiresMigration
			}
		}
		nested := Resolve(sc, sub.Snapshot)
		if nested == RequiresMigration {
			c.logger.Info("cached subclass requires migration",
				zap.String("type", c.typ.Name),
				zap.String("subclass", sub.Type))
			return nil, RequiresMigration
		}
		verdict = worse(verdict, nested)
		cache[sub.Type] = sc
	}
	return cache, verdict
}
