package near

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/goliatone/go-errors"
	siwn "github.com/near-everything/go-siwn"
)

// Social contract ids per network.
const (
	SocialContractMainnet = "social.near"
	SocialContractTestnet = "v1.social08.testnet"
)

// SocialResolver reads display profiles from the on-chain social contract.
// It implements siwn.ProfileResolver; callers treat lookups as best effort.
type SocialResolver struct {
	rpc       *RPCClient
	contracts map[siwn.Network]string
}

// SocialOption configures the resolver.
type SocialOption func(*SocialResolver)

// WithSocialContract overrides the contract id for a network.
func WithSocialContract(network siwn.Network, contractID string) SocialOption {
	return func(r *SocialResolver) {
		if contractID != "" {
			r.contracts[network] = contractID
		}
	}
}

// NewSocialResolver creates a resolver over the RPC client.
func NewSocialResolver(rpc *RPCClient, opts ...SocialOption) *SocialResolver {
	r := &SocialResolver{
		rpc: rpc,
		contracts: map[siwn.Network]string{
			siwn.NetworkMainnet: SocialContractMainnet,
			siwn.NetworkTestnet: SocialContractTestnet,
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

var _ siwn.ProfileResolver = (*SocialResolver)(nil)

// Profile implements siwn.ProfileResolver by calling the social contract's
// get method for the account's profile subtree.
func (r *SocialResolver) Profile(ctx context.Context, accountID string, network siwn.Network) (map[string]any, error) {
	contract, ok := r.contracts[network]
	if !ok {
		return nil, errors.New(fmt.Sprintf("no social contract for network %q", network), errors.CategoryBadInput)
	}

	raw, err := r.rpc.CallFunction(ctx, network, contract, "get", map[string]any{
		"keys": []string{fmt.Sprintf("%s/profile/**", accountID)},
	})
	if err != nil {
		return nil, err
	}

	var tree map[string]map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to decode social profile")
	}

	entry, ok := tree[accountID]
	if !ok {
		return nil, nil
	}

	profile, _ := entry["profile"].(map[string]any)
	return profile, nil
}
