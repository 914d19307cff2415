package instance

import (
	"math/rand"
	"time"

	"instanced/internal/backend"
	"instanced/internal/bufalloc"
	"instanced/pkg/types"
)

// warmupSample is one prebuilt batch of synthetic requests, executed count
// times before the instance serves real traffic. The placeholder buffers
// are allocated once at initialization and shared by every request in the
// batch across all iterations.
type warmupSample struct {
	name     string
	count    int
	requests []*backend.Request

	zeroData     *bufalloc.Buffer
	randomData   *bufalloc.Buffer
	providedData []*bufalloc.Buffer
}

func (i *Instance) buildWarmupSamples() error {
	for _, entry := range i.model.config.Warmup {
		s, err := i.buildWarmupSample(entry)
		if err != nil {
			return err
		}
		i.warmupSamples = append(i.warmupSamples, s)
	}
	return nil
}

func (i *Instance) buildWarmupSample(entry types.WarmupEntry) (warmupSample, error) {
	s := warmupSample{name: entry.Name, count: entry.Count}
	// A sample of "0 iterations" still runs once; a no-op warm-up would
	// leave the first real request paying full cold-start cost.
	if s.count < 1 {
		s.count = 1
	}
	// A batch of requests, not a single request, so the warm-up matches
	// the batch shape the model expects.
	batch := entry.BatchSize
	if batch < 1 {
		batch = 1
	}
	if max := i.model.config.MaxBatchSize; max > 0 && batch > max {
		return s, newConfigError("warmup %s: batch_size %d exceeds model max_batch_size %d", entry.Name, batch, max)
	}

	// Size the shared zero/random buffers to the largest input using each
	// source, and validate provided data against the declared shape.
	var zeroSize, randomSize int64
	for _, in := range entry.Inputs {
		size, err := tensorByteSize(entry.Name, in)
		if err != nil {
			return s, err
		}
		switch in.Source {
		case types.WarmupZero:
			if size > zeroSize {
				zeroSize = size
			}
		case types.WarmupRandom:
			if size > randomSize {
				randomSize = size
			}
		case types.WarmupProvided:
			if int64(len(in.Data)) != size {
				return s, newConfigError("warmup %s: provided data for input %s is %d bytes, expected %d",
					entry.Name, in.Name, len(in.Data), size)
			}
		default:
			return s, newConfigError("warmup %s: unknown data source %q for input %s", entry.Name, in.Source, in.Name)
		}
	}

	alloc := i.model.allocator
	if zeroSize > 0 {
		buf, err := alloc.Allocate(zeroSize)
		if err != nil {
			return s, newResourceError("warmup %s: %v", entry.Name, err)
		}
		buf.FillZero()
		s.zeroData = buf
	}
	if randomSize > 0 {
		buf, err := alloc.Allocate(randomSize)
		if err != nil {
			return s, newResourceError("warmup %s: %v", entry.Name, err)
		}
		buf.FillRandom(rand.New(rand.NewSource(time.Now().UnixNano())))
		s.randomData = buf
	}
	for _, in := range entry.Inputs {
		if in.Source != types.WarmupProvided {
			continue
		}
		buf, err := alloc.Allocate(int64(len(in.Data)))
		if err != nil {
			return s, newResourceError("warmup %s: %v", entry.Name, err)
		}
		copy(buf.Bytes(), in.Data)
		s.providedData = append(s.providedData, buf)
	}

	for b := 0; b < batch; b++ {
		inputs := make([]backend.Input, 0, len(entry.Inputs))
		pi := 0
		for _, in := range entry.Inputs {
			size, _ := tensorByteSize(entry.Name, in)
			var data []byte
			switch in.Source {
			case types.WarmupZero:
				data = s.zeroData.Bytes()[:size]
			case types.WarmupRandom:
				data = s.randomData.Bytes()[:size]
			case types.WarmupProvided:
				data = s.providedData[pi].Bytes()
				pi++
			}
			inputs = append(inputs, backend.Input{Name: in.Name, Dims: in.Dims, Data: data})
		}
		s.requests = append(s.requests, backend.NewRequest(inputs...))
	}
	return s, nil
}

func tensorByteSize(sample string, in types.WarmupInput) (int64, error) {
	if in.ElementSize <= 0 {
		return 0, newConfigError("warmup %s: input %s has invalid element size %d", sample, in.Name, in.ElementSize)
	}
	size := in.ElementSize
	for _, d := range in.Dims {
		if d <= 0 {
			return 0, newConfigError("warmup %s: input %s has non-positive dim %d", sample, in.Name, d)
		}
		size *= d
	}
	return size, nil
}
