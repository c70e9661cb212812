package payroll

import (
	"context"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/payroll-ledger/common"
)

// AddToken makes the token accepted for payments with the given USD cents
// rate. It can be invoked only by the owner.
func (l *Ledger) AddToken(ctx context.Context, caller, token util.Uint160, cents uint64) error {
	return l.update(ctx, "addToken", func(s *state) ([]Event, error) {
		if err := s.checkOwner(caller); err != nil {
			return nil, err
		}
		if err := s.checkNotPaused(); err != nil {
			return nil, err
		}
		if token == (util.Uint160{}) {
			return nil, fmt.Errorf("%w: empty token address", ErrInvalidArgument)
		}

		_, ok, err := s.tokenSlot(token)
		if err != nil {
			return nil, err
		}
		if ok {
			return nil, fmt.Errorf("%w: token %s", ErrAlreadyExists, token.StringLE())
		}

		count, err := s.tokenCount()
		if err != nil {
			return nil, err
		}
		limit, err := s.tokenLimit()
		if err != nil {
			return nil, err
		}
		if count+1 > limit {
			return nil, fmt.Errorf("%w: %d tokens are already accepted", ErrLimitExceeded, count)
		}

		if err := s.putTokenAt(count, Token{Address: token, USDRateCents: cents}); err != nil {
			return nil, err
		}
		s.putUint64(tokenCountKey, count+1)

		return []Event{{Name: EventTokenAdded, Account: token, Value: cents}}, nil
	})
}

// RemoveToken stops accepting the token. The last accepted token takes the
// place of the removed one. It can be invoked only by the owner.
func (l *Ledger) RemoveToken(ctx context.Context, caller, token util.Uint160) error {
	return l.update(ctx, "removeToken", func(s *state) ([]Event, error) {
		if err := s.checkOwner(caller); err != nil {
			return nil, err
		}
		if err := s.checkNotPaused(); err != nil {
			return nil, err
		}

		slot, ok, err := s.tokenSlot(token)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: token %s", ErrNotFound, token.StringLE())
		}

		count, err := s.tokenCount()
		if err != nil {
			return nil, err
		}

		last := count - 1
		if slot != last {
			moved, err := s.tokenAt(last)
			if err != nil {
				return nil, err
			}
			if err := s.putTokenAt(slot, moved); err != nil {
				return nil, err
			}
		}

		s.s.Delete(common.Key(tokenPrefix, common.Uint64Key(last)))
		s.s.Delete(common.Key(tokenIndexPrefix, token.BytesBE()))
		s.putUint64(tokenCountKey, last)

		return []Event{{Name: EventTokenRemoved, Account: token}}, nil
	})
}

// IsTokenHandled checks whether the token is accepted.
func (l *Ledger) IsTokenHandled(token util.Uint160) (bool, error) {
	var res bool
	err := l.view(func(s *state) (err error) {
		_, res, err = s.tokenSlot(token)
		return
	})
	return res, err
}

// Token returns the accepted token, ErrNotFound if it is not accepted.
func (l *Ledger) Token(token util.Uint160) (Token, error) {
	var res Token
	err := l.view(func(s *state) error {
		t, ok, err := s.token(token)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: token %s", ErrNotFound, token.StringLE())
		}
		res = t
		return nil
	})
	return res, err
}

// Tokens returns all the accepted tokens.
func (l *Ledger) Tokens() ([]Token, error) {
	var res []Token
	err := l.view(func(s *state) (err error) {
		res, err = s.tokens()
		return
	})
	return res, err
}

// TokenCount returns the number of accepted tokens.
func (l *Ledger) TokenCount() (uint64, error) {
	var res uint64
	err := l.view(func(s *state) (err error) {
		res, err = s.tokenCount()
		return
	})
	return res, err
}

// TokenLimit returns the maximum number of accepted tokens.
func (l *Ledger) TokenLimit() (uint64, error) {
	var res uint64
	err := l.view(func(s *state) (err error) {
		res, err = s.tokenLimit()
		return
	})
	return res, err
}

// SetTokenLimit sets the maximum number of accepted tokens. The limit can't
// be lower than the number of currently accepted tokens. It can be invoked
// only by the owner.
func (l *Ledger) SetTokenLimit(ctx context.Context, caller util.Uint160, limit uint64) error {
	return l.update(ctx, "setLimit", func(s *state) ([]Event, error) {
		if err := s.checkOwner(caller); err != nil {
			return nil, err
		}
		if err := s.checkNotPaused(); err != nil {
			return nil, err
		}
		if limit == 0 {
			return nil, fmt.Errorf("%w: zero token limit", ErrInvalidArgument)
		}

		count, err := s.tokenCount()
		if err != nil {
			return nil, err
		}
		if limit < count {
			return nil, fmt.Errorf("%w: %d tokens are accepted, limit %d is too low",
				ErrLimitExceeded, count, limit)
		}

		s.putUint64(tokenLimitKey, limit)

		return []Event{{Name: EventTokenLimitChanged, Value: limit}}, nil
	})
}
