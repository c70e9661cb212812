package api

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/nspcc-dev/neo-go/pkg/crypto/hash"
	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// Headers carrying the caller identity of mutating requests.
const (
	HeaderKey       = "X-Payroll-Key"
	HeaderSignature = "X-Payroll-Signature"
	// HeaderTimestamp carries signing time in Unix milliseconds.
	HeaderTimestamp = "X-Payroll-Timestamp"
)

const (
	// signatureTTL is the maximum distance between the signing time and the
	// server time.
	signatureTTL = time.Minute

	replayCacheSize = 1 << 16
)

var (
	errUnsigned = errors.New("request is not signed")
	errReplayed = errors.New("request has already been served")
	errBusy     = errors.New("too many signed requests, retry later")
)

// signedData returns data covered by the request signature.
func signedData(method, path, timestamp string, body []byte) []byte {
	data := make([]byte, 0, len(method)+len(path)+len(timestamp)+len(body)+3)
	data = append(data, method...)
	data = append(data, ' ')
	data = append(data, path...)
	data = append(data, '\n')
	data = append(data, timestamp...)
	data = append(data, '\n')
	return append(data, body...)
}

// SignRequest sets identity headers of the request with the given body signed
// at the current time.
func SignRequest(req *http.Request, key *keys.PrivateKey, body []byte) {
	SignRequestAt(req, key, body, time.Now())
}

// SignRequestAt is SignRequest with explicit signing time.
func SignRequestAt(req *http.Request, key *keys.PrivateKey, body []byte, at time.Time) {
	ts := strconv.FormatInt(at.UnixMilli(), 10)
	sig := key.Sign(signedData(req.Method, req.URL.Path, ts, body))

	req.Header.Set(HeaderKey, hex.EncodeToString(key.PublicKey().Bytes()))
	req.Header.Set(HeaderTimestamp, ts)
	req.Header.Set(HeaderSignature, hex.EncodeToString(sig))
}

// signature is a verified request signature.
type signature struct {
	caller util.Uint160
	// identifies signed data regardless of the signature encoding
	id string
	at time.Time
}

// verifyRequest checks the request signature and its freshness.
func verifyRequest(r *http.Request, body []byte, now time.Time) (signature, error) {
	rawKey := r.Header.Get(HeaderKey)
	rawSig := r.Header.Get(HeaderSignature)
	rawTS := r.Header.Get(HeaderTimestamp)
	if rawKey == "" || rawSig == "" || rawTS == "" {
		return signature{}, errUnsigned
	}

	ms, err := strconv.ParseInt(rawTS, 10, 64)
	if err != nil {
		return signature{}, fmt.Errorf("invalid timestamp: %w", err)
	}
	at := time.UnixMilli(ms)
	if d := now.Sub(at); d > signatureTTL || d < -signatureTTL {
		return signature{}, fmt.Errorf("timestamp is out of %s window", signatureTTL)
	}

	pub, err := keys.NewPublicKeyFromString(rawKey)
	if err != nil {
		return signature{}, fmt.Errorf("invalid public key: %w", err)
	}

	sig, err := hex.DecodeString(rawSig)
	if err != nil {
		return signature{}, fmt.Errorf("invalid signature encoding: %w", err)
	}

	digest := hash.Sha256(signedData(r.Method, r.URL.Path, rawTS, body))
	if !pub.Verify(sig, digest.BytesBE()) {
		return signature{}, errors.New("signature mismatch")
	}

	return signature{
		caller: pub.GetScriptHash(),
		id:     string(pub.Bytes()) + string(digest.BytesBE()),
		at:     at,
	}, nil
}

// replayCache remembers served signatures until they go out of the time
// window.
type replayCache struct {
	mu   sync.Mutex
	size int
	// signature ID to its expiration time
	seen *lru.Cache
}

func newReplayCache(size int) *replayCache {
	c, err := lru.New(size)
	if err != nil {
		panic(err)
	}
	return &replayCache{size: size, seen: c}
}

// use marks the signature as served. It fails if the signature has been
// served before or if the cache is full of signatures that are still valid.
func (c *replayCache) use(sig signature, now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.seen.Contains(sig.id) {
		return errReplayed
	}

	for {
		_, v, ok := c.seen.GetOldest()
		if !ok || !now.After(v.(time.Time)) {
			break
		}
		c.seen.RemoveOldest()
	}

	// evicting a valid signature would make it acceptable again
	if c.seen.Len() >= c.size {
		return errBusy
	}

	c.seen.Add(sig.id, sig.at.Add(signatureTTL))
	return nil
}
