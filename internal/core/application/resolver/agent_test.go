package resolver_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/xswapd/internal/core/application/resolver"
	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/internal/core/ports"
	"github.com/tdex-network/xswapd/internal/infrastructure/chain/simchain"
)

func TestAgentFillsAndClaims(t *testing.T) {
	env := newTestEnv(t)
	agent := env.newAgent(t, "alice", 0, "2.05", 10_000_000)
	order, secret := env.newOrder(t, 1_000_000)
	ctx := context.Background()

	require.NoError(t, env.book.PublishOrder(ctx, order))
	agent.requireState(t, order.ID, resolver.StateAwaitingSecret)

	locks := env.network.Escrows(domain.ChainDestination)
	require.Len(t, locks, 1)
	require.Equal(t, env.receiver, locks[0].Beneficiary)
	require.Equal(t, "2020000", locks[0].TotalAmount.String())
	require.Equal(t, "1000000", locks[0].ClaimAmount.String())
	require.Equal(t, order.DestinationTimeLock, locks[0].TimeLock)

	require.NoError(t, env.book.PublishSecret(ctx, ports.SecretRelease{
		OrderID: order.ID, HashLock: order.HashLock, Secret: secret,
	}))
	agent.requireState(t, order.ID, resolver.StateDone)

	require.Equal(t, "1000000",
		env.network.BalanceOf(domain.ChainSource, agent.source.Address()).String())
	require.Equal(t, "2020000",
		env.network.BalanceOf(domain.ChainDestination, env.receiver).String())
	require.Equal(t, "7980000",
		env.network.BalanceOf(domain.ChainDestination, agent.destination.Address()).String())
}

func TestAgentPicksSecretFromDestinationEscrow(t *testing.T) {
	env := newTestEnv(t)
	agent := env.newAgent(t, "alice", 0, "2.05", 10_000_000)
	order, secret := env.newOrder(t, 1_000_000)
	ctx := context.Background()

	require.NoError(t, env.book.PublishOrder(ctx, order))
	agent.requireState(t, order.ID, resolver.StateAwaitingSecret)

	// the maker settles the destination escrow without publishing the secret.
	settler, err := env.network.Client(
		domain.ChainDestination, simchain.NewAddress(domain.ChainDestination),
	)
	require.NoError(t, err)
	lock := env.network.Escrows(domain.ChainDestination)[0]
	_, err = settler.FillPartial(ctx, lock.ID, big.NewInt(1), secret)
	require.NoError(t, err)

	agent.requireState(t, order.ID, resolver.StateDone)
	require.Equal(t, "1000000",
		env.network.BalanceOf(domain.ChainSource, agent.source.Address()).String())
}

func TestAgentOverFillRetriesWithRemaining(t *testing.T) {
	env := newTestEnv(t)
	agent := env.newAgent(t, "alice", 600_000, "2.05", 10_000_000)
	order, secret := env.newOrder(t, 1_000_000)
	ctx := context.Background()

	require.NoError(t, env.book.PublishOrder(ctx, order))
	agent.requireState(t, order.ID, resolver.StateAwaitingSecret)

	// someone else claims 700k before the agent does.
	other, err := env.network.Client(domain.ChainSource, simchain.NewAddress(domain.ChainSource))
	require.NoError(t, err)
	_, err = other.FillPartial(ctx, order.SourceEscrowID, big.NewInt(700_000), secret)
	require.NoError(t, err)

	require.NoError(t, env.book.PublishSecret(ctx, ports.SecretRelease{
		OrderID: order.ID, HashLock: order.HashLock, Secret: secret,
	}))

	// only the share paid by the 300k claimed goes to the receiver.
	require.Eventually(t, func() bool {
		return env.network.BalanceOf(domain.ChainDestination, env.receiver).String() == "606000"
	}, waitFor, tick)
	agent.requireState(t, order.ID, resolver.StateClaimingSource)
	require.Equal(t, "300000",
		env.network.BalanceOf(domain.ChainSource, agent.source.Address()).String())
	source := env.network.Escrows(domain.ChainSource)[0]
	require.True(t, source.IsSettled())

	env.clock.Advance(55 * time.Minute)
	agent.requireState(t, order.ID, resolver.StateDone)

	lock := env.network.Escrows(domain.ChainDestination)[0]
	require.True(t, lock.IsRefunded())
	require.Equal(t, "606000", lock.FilledAmount().String())
	require.Equal(t, "606000",
		env.network.BalanceOf(domain.ChainDestination, env.receiver).String())
	require.Equal(t, "9394000",
		env.network.BalanceOf(domain.ChainDestination, agent.destination.Address()).String())
}

func TestAgentRefundsWhenSourceClaimedByOthers(t *testing.T) {
	env := newTestEnv(t)
	agent := env.newAgent(t, "alice", 0, "2.05", 10_000_000)
	order, secret := env.newOrder(t, 1_000_000)
	ctx := context.Background()

	require.NoError(t, env.book.PublishOrder(ctx, order))
	agent.requireState(t, order.ID, resolver.StateAwaitingSecret)

	other, err := env.network.Client(domain.ChainSource, simchain.NewAddress(domain.ChainSource))
	require.NoError(t, err)
	_, err = other.FillPartial(ctx, order.SourceEscrowID, big.NewInt(1_000_000), secret)
	require.NoError(t, err)

	require.NoError(t, env.book.PublishSecret(ctx, ports.SecretRelease{
		OrderID: order.ID, HashLock: order.HashLock, Secret: secret,
	}))
	agent.requireState(t, order.ID, resolver.StateClaimingSource)

	env.clock.Advance(55 * time.Minute)
	agent.requireState(t, order.ID, resolver.StateAbandoned)

	require.True(t, env.network.Escrows(domain.ChainDestination)[0].IsRefunded())
	require.Equal(t, "0",
		env.network.BalanceOf(domain.ChainSource, agent.source.Address()).String())
	require.Equal(t, "0",
		env.network.BalanceOf(domain.ChainDestination, env.receiver).String())
	require.Equal(t, "10000000",
		env.network.BalanceOf(domain.ChainDestination, agent.destination.Address()).String())
}

func TestAgentRacingForWholeOrder(t *testing.T) {
	env := newTestEnv(t)
	order, secret := env.newOrder(t, 1_000_000)
	ctx := context.Background()

	// both resolvers locked for the whole order before seeing each other.
	locks := make(map[string]string)
	wallets := make([]*testAgent, 0, 2)
	for _, name := range []string{"alice", "bob"} {
		destination, err := env.network.Client(
			domain.ChainDestination, simchain.NewAddress(domain.ChainDestination),
		)
		require.NoError(t, err)
		env.network.Fund(domain.ChainDestination, destination.Address(), big.NewInt(10_000_000))
		rcpt, err := destination.Create(ctx, ports.CreateEscrowArgs{
			HashLock:    order.HashLock,
			TimeLock:    order.DestinationTimeLock,
			Amount:      big.NewInt(2_020_000),
			Beneficiary: env.receiver,
			OrderID:     order.ID,
			ClaimAmount: big.NewInt(1_000_000),
		})
		require.NoError(t, err)
		locks[name] = rcpt.EscrowID
		wallets = append(wallets, env.runAgent(t, name, destination))
	}
	alice, bob := wallets[0], wallets[1]

	require.NoError(t, env.book.PublishOrder(ctx, order))
	alice.requireState(t, order.ID, resolver.StateAwaitingSecret)
	bob.requireState(t, order.ID, resolver.StateAwaitingSecret)

	// the maker accepts and settles the lock of alice only.
	settler, err := env.network.Client(
		domain.ChainDestination, simchain.NewAddress(domain.ChainDestination),
	)
	require.NoError(t, err)
	require.NoError(t, env.book.PublishSecret(ctx, ports.SecretRelease{
		OrderID:   order.ID,
		HashLock:  order.HashLock,
		Secret:    secret,
		EscrowIDs: []string{locks["alice"]},
	}))
	_, err = settler.FillPartial(ctx, locks["alice"], big.NewInt(2_020_000), secret)
	require.NoError(t, err)

	alice.requireState(t, order.ID, resolver.StateDone)
	bob.requireState(t, order.ID, resolver.StateClaimingSource)
	require.Equal(t, "1000000",
		env.network.BalanceOf(domain.ChainSource, alice.source.Address()).String())

	env.clock.Advance(55 * time.Minute)
	bob.requireState(t, order.ID, resolver.StateAbandoned)

	require.Equal(t, "0",
		env.network.BalanceOf(domain.ChainSource, bob.source.Address()).String())
	require.Equal(t, "10000000",
		env.network.BalanceOf(domain.ChainDestination, bob.destination.Address()).String())
	require.Equal(t, "7980000",
		env.network.BalanceOf(domain.ChainDestination, alice.destination.Address()).String())
	require.Equal(t, "2020000",
		env.network.BalanceOf(domain.ChainDestination, env.receiver).String())
}

func TestAgentRefundsWithoutSecret(t *testing.T) {
	env := newTestEnv(t)
	agent := env.newAgent(t, "alice", 0, "2.05", 10_000_000)
	order, _ := env.newOrder(t, 1_000_000)

	require.NoError(t, env.book.PublishOrder(context.Background(), order))
	agent.requireState(t, order.ID, resolver.StateAwaitingSecret)
	require.Equal(t, "7980000",
		env.network.BalanceOf(domain.ChainDestination, agent.destination.Address()).String())

	env.clock.Advance(55 * time.Minute)
	agent.requireState(t, order.ID, resolver.StateAbandoned)

	require.Eventually(t, func() bool {
		return env.network.Escrows(domain.ChainDestination)[0].IsRefunded()
	}, waitFor, tick)
	require.Equal(t, "10000000",
		env.network.BalanceOf(domain.ChainDestination, agent.destination.Address()).String())
}

func TestAgentAbandonsOnSecretMismatch(t *testing.T) {
	env := newTestEnv(t)
	agent := env.newAgent(t, "alice", 0, "2.05", 10_000_000)
	order, secret := env.newOrder(t, 1_000_000)
	ctx := context.Background()

	require.NoError(t, env.book.PublishOrder(ctx, order))
	agent.requireState(t, order.ID, resolver.StateAwaitingSecret)

	env.network.FailNext(domain.ChainSource, simchain.OpFill, domain.ErrSecretMismatch)
	require.NoError(t, env.book.PublishSecret(ctx, ports.SecretRelease{
		OrderID: order.ID, HashLock: order.HashLock, Secret: secret,
	}))
	agent.requireState(t, order.ID, resolver.StateClaimingSource)

	env.clock.Advance(55 * time.Minute)
	agent.requireState(t, order.ID, resolver.StateAbandoned)

	require.Equal(t, "0",
		env.network.BalanceOf(domain.ChainSource, agent.source.Address()).String())
	require.Equal(t, "10000000",
		env.network.BalanceOf(domain.ChainDestination, agent.destination.Address()).String())
}

func TestAgentSkipsUnprofitableOrder(t *testing.T) {
	env := newTestEnv(t)
	agent := env.newAgent(t, "bob", 0, "1.5", 10_000_000)
	order, _ := env.newOrder(t, 1_000_000)

	require.NoError(t, env.book.PublishOrder(context.Background(), order))
	agent.requireState(t, order.ID, resolver.StateEvaluating)

	env.clock.Advance(55 * time.Minute)
	agent.requireState(t, order.ID, resolver.StateAbandoned)
	require.Empty(t, env.network.Escrows(domain.ChainDestination))
}

func TestAgentLostCreateResponse(t *testing.T) {
	env := newTestEnv(t)
	env.network.LoseNextResponse(domain.ChainDestination, simchain.OpCreate)
	agent := env.newAgent(t, "alice", 0, "2.05", 10_000_000)
	order, _ := env.newOrder(t, 1_000_000)

	require.NoError(t, env.book.PublishOrder(context.Background(), order))
	agent.requireState(t, order.ID, resolver.StateAwaitingSecret)

	// the lost submission must not be repeated.
	require.Len(t, env.network.Escrows(domain.ChainDestination), 1)
}

func TestNewAgent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	source, err := env.network.Client(domain.ChainSource, simchain.NewAddress(domain.ChainSource))
	require.NoError(t, err)
	destination, err := env.network.Client(
		domain.ChainDestination, simchain.NewAddress(domain.ChainDestination),
	)
	require.NoError(t, err)
	rates := staticRates{}

	tests := []struct {
		name        string
		source      ports.EscrowClient
		destination ports.EscrowClient
		book        ports.OrderBook
		cfg         resolver.Config
	}{
		{"missing source", nil, destination, env.book, resolver.Config{Name: "a"}},
		{"swapped chains", destination, source, env.book, resolver.Config{Name: "a"}},
		{"missing order book", source, destination, nil, resolver.Config{Name: "a"}},
		{"missing name", source, destination, env.book, resolver.Config{}},
		{"invalid margin", source, destination, env.book, resolver.Config{Name: "a", MinMarginBps: 10000}},
		{"negative max fill", source, destination, env.book, resolver.Config{Name: "a", MaxFillAmount: big.NewInt(-1)}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := resolver.NewAgent(tt.source, tt.destination, tt.book, rates, tt.cfg)
			require.Error(t, err)
		})
	}
}
