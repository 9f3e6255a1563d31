package tipi

// SenderOption configures a Sender at construction time.
type SenderOption func(*senderSettings)

type senderSettings struct {
	logger Logger
}

func defaultSenderSettings() senderSettings {
	return senderSettings{logger: NoopLogger{}}
}

// WithSenderLogger attaches a Logger for protocol tracing.
func WithSenderLogger(l Logger) SenderOption {
	return func(s *senderSettings) { s.logger = l }
}

// ReceiverOption configures a Receiver at construction time.
type ReceiverOption func(*receiverSettings)

type receiverSettings struct {
	logger      Logger
	callbacks   Callbacks
	scratchSize int
}

func defaultReceiverSettings() receiverSettings {
	return receiverSettings{
		logger:      NoopLogger{},
		callbacks:   defaultCallbacks(),
		scratchSize: maxBlobLength,
	}
}

// WithReceiverLogger attaches a Logger for protocol tracing.
func WithReceiverLogger(l Logger) ReceiverOption {
	return func(s *receiverSettings) { s.logger = l }
}

// WithCallbacks attaches the application-layer field handler and error
// notification hooks. Unset fields default to no-ops (spec.md §6.2:
// "Handler registration is part of receiver context initialization").
func WithCallbacks(cb Callbacks) ReceiverOption {
	return func(s *receiverSettings) { s.callbacks = mergeCallbacks(cb) }
}

// WithScratchSize overrides the receiver's blob-assembly scratch buffer
// size. It is clamped to [4, maxBlobLength]; the reference C
// implementation hard-codes 64 bytes while admitting LEN_HEADER lengths
// up to 256, a latent overrun the spec calls out in §9. This
// implementation defaults scratchSize to maxBlobLength so the overrun
// cannot occur; callers targeting genuinely memory-constrained devices
// can shrink it back down, in which case any declared length exceeding
// scratchSize is treated as a record error rather than an overrun.
func WithScratchSize(n int) ReceiverOption {
	return func(s *receiverSettings) {
		if n < 4 {
			n = 4 // FIX32 always needs room for 4 bytes
		}
		if n > maxBlobLength {
			n = maxBlobLength
		}
		s.scratchSize = n
	}
}
