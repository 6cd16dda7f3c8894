package knob

import (
	"context"

	"github.com/matzehuels/knobs/pkg/anim"
	"github.com/matzehuels/knobs/pkg/hash"
)

// AppendToHash appends the state of every dimension selected by args.Type
// to h. Dimensions driven by an expression count as animated.
func (k *Knob[T]) AppendToHash(ctx context.Context, h *hash.Hash64, args HashArgs) {
	v := k.views.ResolveView(args.View)
	for d := range k.nDims {
		dim := anim.DimIdx(d)
		e := k.expressionAt(dim, v)
		data := k.slot(dim, v)
		data.mu.RLock()
		animated := data.animated() || e != nil
		plain := data.value
		data.mu.RUnlock()

		switch args.Type {
		case HashTimeViewVariant:
			if !animated {
				appendValue(h, plain)
				continue
			}
			if k.opts.hashing == HashingAnimation {
				k.appendAnimation(h, data, e)
				continue
			}
			appendValue(h, k.valueAt(ctx, args.Time, dim, v))
		case HashTimeViewInvariant:
			if !animated {
				appendValue(h, plain)
			}
		case HashOnlyMetadataSlaves:
			if k.opts.metadataSlave && !animated {
				appendValue(h, plain)
			}
		}
	}
}

func (k *Knob[T]) appendAnimation(h *hash.Hash64, data *dimViewData[T], e *expression) {
	if e != nil {
		h.AppendString(e.src)
		h.AppendBool(e.usesRet)
		return
	}
	data.mu.RLock()
	defer data.mu.RUnlock()
	data.curve.AppendToHash(h)
	if data.strings != nil {
		for _, s := range data.strings.Save(data.curve) {
			h.AppendString(s.Text)
		}
	}
}

// Hash returns the hash of k for args. Results are cached until the next
// change of k or of anything it reads.
func (k *Knob[T]) Hash(ctx context.Context, args HashArgs) uint64 {
	args.View = k.views.ResolveView(args.View)
	if args.Type != HashTimeViewVariant {
		args.Time = 0
	}
	k.hashMu.Lock()
	if v, ok := k.hashCache[args]; ok {
		k.hashMu.Unlock()
		return v
	}
	gen := k.hashGen
	k.hashMu.Unlock()

	h := hash.New()
	k.AppendToHash(ctx, h, args)
	sum := h.Sum64()
	k.storeHash(args, gen, sum)
	return sum
}

// storeHash caches sum unless the knob was invalidated since gen was read.
func (k *Knob[T]) storeHash(args HashArgs, gen, sum uint64) {
	k.hashMu.Lock()
	defer k.hashMu.Unlock()
	if k.hashGen == gen {
		k.hashCache[args] = sum
	}
}

func (k *Knob[T]) invalidateHash() {
	k.hashMu.Lock()
	k.hashGen++
	clear(k.hashCache)
	k.hashMu.Unlock()
}

func appendValue[T Value](h *hash.Hash64, v T) {
	switch x := any(v).(type) {
	case int:
		h.AppendInt(int64(x))
	case float64:
		h.AppendFloat(x)
	case bool:
		h.AppendBool(x)
	case string:
		h.AppendString(x)
	}
}
