package referral

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/gagliardetto/solana-go"
	log "github.com/sirupsen/logrus"

	"stakereferral/internal/models"
)

// OperatorVerifier decides whether a caller is a delegated operator.
type OperatorVerifier interface {
	IsOperator(caller solana.PublicKey, proof *OperatorProof) bool
}

// ForemanList is a fixed set of operator keys.
type ForemanList []string

func (l ForemanList) IsOperator(caller solana.PublicKey, _ *OperatorProof) bool {
	key := caller.String()
	for _, f := range l {
		if f == key {
			return true
		}
	}
	return false
}

// MerkleOperators accepts callers proving membership in Root.
type MerkleOperators struct {
	Root [32]byte
}

func (m MerkleOperators) IsOperator(caller solana.PublicKey, proof *OperatorProof) bool {
	return VerifyOperatorProof(m.Root, caller, proof)
}

// VerifierFor returns the operator strategy configured on the registry.
func VerifierFor(state *models.GlobalState) (OperatorVerifier, error) {
	switch state.OperatorStrategy {
	case models.OperatorStrategyList, "":
		return ForemanList(state.Foremen), nil
	case models.OperatorStrategyMerkle:
		root, err := ParseOperatorRoot(state.OperatorRoot)
		if err != nil {
			return nil, err
		}
		return MerkleOperators{Root: root}, nil
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidOperatorConfig, state.OperatorStrategy)
	}
}

func checkAdmin(state *models.GlobalState, caller solana.PublicKey) error {
	if caller.IsZero() || state.AdminAccount != caller.String() {
		return fmt.Errorf("%w: %s is not admin", ErrAccessDenied, caller)
	}
	return nil
}

// checkOperator passes the admin and any operator accepted by the
// registry's verifier.
func checkOperator(state *models.GlobalState, caller solana.PublicKey, proof *OperatorProof) error {
	if checkAdmin(state, caller) == nil {
		return nil
	}
	verifier, err := VerifierFor(state)
	if err != nil {
		return err
	}
	if caller.IsZero() || !verifier.IsOperator(caller, proof) {
		return fmt.Errorf("%w: %s is not admin or operator", ErrAccessDenied, caller)
	}
	return nil
}

// RegistryInput initializes the registry. Exactly one of Foremen and
// OperatorRoot selects the operator strategy; neither means an empty list.
type RegistryInput struct {
	Admin               solana.PublicKey
	MsolMint            solana.PublicKey
	TreasuryMsolAccount solana.PublicKey
	TreasuryAuthority   solana.PublicKey
	Foremen             []solana.PublicKey
	OperatorRoot        *[32]byte
}

// InitializeRegistry creates the singleton registry. The caller must be
// the admin being installed.
func (e *Engine) InitializeRegistry(ctx context.Context, caller solana.PublicKey, in RegistryInput) (*models.GlobalState, error) {
	for name, key := range map[string]solana.PublicKey{
		"admin":              in.Admin,
		"msol mint":          in.MsolMint,
		"treasury account":   in.TreasuryMsolAccount,
		"treasury authority": in.TreasuryAuthority,
	} {
		if err := requireKey(name, key); err != nil {
			return nil, err
		}
	}
	if !caller.Equals(in.Admin) {
		return nil, fmt.Errorf("%w: initializer must be the admin", ErrAccessDenied)
	}
	state := &models.GlobalState{
		AdminAccount:        in.Admin.String(),
		MsolMint:            in.MsolMint.String(),
		TreasuryMsolAccount: in.TreasuryMsolAccount.String(),
		TreasuryAuthority:   in.TreasuryAuthority.String(),
	}
	if err := applyOperators(state, in.Foremen, in.OperatorRoot); err != nil {
		return nil, err
	}

	err := e.atomic(ctx, "initialize_registry", func(tx Tx, emit emitFunc) error {
		if err := e.checkTreasury(ctx, tx, state); err != nil {
			return err
		}
		if err := tx.CreateRegistry(ctx, state); err != nil {
			return err
		}
		emit(EventRegistryInitialized, "", map[string]string{
			"admin":    state.AdminAccount,
			"treasury": state.TreasuryMsolAccount,
			"strategy": state.OperatorStrategy,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"admin": state.AdminAccount, "treasury": state.TreasuryMsolAccount}).Info("referral registry initialized")
	return state, nil
}

// checkTreasury requires the fee pool to hold the reference mint, be owned
// by the treasury authority and have no delegate.
func (e *Engine) checkTreasury(ctx context.Context, tx Tx, state *models.GlobalState) error {
	treasury, err := e.resolveAccount(ctx, tx, solana.MustPublicKeyFromBase58(state.TreasuryMsolAccount))
	if err != nil {
		return err
	}
	switch {
	case treasury.Mint != state.MsolMint:
		return fmt.Errorf("%w: mint %s, want %s", ErrInvalidTreasury, treasury.Mint, state.MsolMint)
	case treasury.OwnerAddress != state.TreasuryAuthority:
		return fmt.Errorf("%w: owner %s, want treasury authority", ErrInvalidTreasury, treasury.OwnerAddress)
	case treasury.DelegateAddress != "":
		return fmt.Errorf("%w: delegate %s set", ErrInvalidTreasury, treasury.DelegateAddress)
	}
	return nil
}

func applyOperators(state *models.GlobalState, foremen []solana.PublicKey, root *[32]byte) error {
	if root != nil {
		if len(foremen) > 0 {
			return fmt.Errorf("%w: foremen and root are exclusive", ErrInvalidOperatorConfig)
		}
		state.OperatorStrategy = models.OperatorStrategyMerkle
		state.OperatorRoot = hex.EncodeToString(root[:])
		state.Foremen = nil
		return nil
	}
	if len(foremen) > MaxForemen {
		return fmt.Errorf("%w: %d foremen, max %d", ErrInvalidOperatorConfig, len(foremen), MaxForemen)
	}
	list := make([]string, 0, len(foremen))
	for _, f := range foremen {
		if err := requireKey("foreman", f); err != nil {
			return err
		}
		list = append(list, f.String())
	}
	state.OperatorStrategy = models.OperatorStrategyList
	state.Foremen = list
	state.OperatorRoot = ""
	return nil
}

// Registry returns the current registry.
func (e *Engine) Registry(ctx context.Context) (*models.GlobalState, error) {
	var state *models.GlobalState
	err := e.store.Atomic(ctx, func(tx Tx) error {
		var err error
		state, err = tx.Registry(ctx)
		return err
	})
	return state, err
}

// VerifyAdmin fails with ErrAccessDenied unless caller is the admin.
func (e *Engine) VerifyAdmin(ctx context.Context, caller solana.PublicKey) error {
	state, err := e.Registry(ctx)
	if err != nil {
		return err
	}
	return checkAdmin(state, caller)
}

// VerifyOperator fails with ErrAccessDenied unless caller is the admin or
// an operator.
func (e *Engine) VerifyOperator(ctx context.Context, caller solana.PublicKey, proof *OperatorProof) error {
	state, err := e.Registry(ctx)
	if err != nil {
		return err
	}
	return checkOperator(state, caller, proof)
}

// SetAdmin replaces the admin. Admin only.
func (e *Engine) SetAdmin(ctx context.Context, caller, newAdmin solana.PublicKey) error {
	if err := requireKey("admin", newAdmin); err != nil {
		return err
	}
	return e.atomic(ctx, "set_admin", func(tx Tx, emit emitFunc) error {
		state, err := tx.Registry(ctx)
		if err != nil {
			return err
		}
		if err := checkAdmin(state, caller); err != nil {
			return err
		}
		previous := state.AdminAccount
		state.AdminAccount = newAdmin.String()
		if err := tx.SaveRegistry(ctx, state); err != nil {
			return err
		}
		emit(EventAdminChanged, "", map[string]string{"previous": previous, "admin": state.AdminAccount})
		return nil
	})
}

// SetForemen replaces the operator set with a fixed list. Admin only.
func (e *Engine) SetForemen(ctx context.Context, caller solana.PublicKey, foremen []solana.PublicKey) error {
	return e.setOperators(ctx, caller, foremen, nil)
}

// SetOperatorRoot replaces the operator set with a Merkle root. Admin only.
func (e *Engine) SetOperatorRoot(ctx context.Context, caller solana.PublicKey, root [32]byte) error {
	return e.setOperators(ctx, caller, nil, &root)
}

func (e *Engine) setOperators(ctx context.Context, caller solana.PublicKey, foremen []solana.PublicKey, root *[32]byte) error {
	return e.atomic(ctx, "set_operators", func(tx Tx, emit emitFunc) error {
		state, err := tx.Registry(ctx)
		if err != nil {
			return err
		}
		if err := checkAdmin(state, caller); err != nil {
			return err
		}
		if err := applyOperators(state, foremen, root); err != nil {
			return err
		}
		if err := tx.SaveRegistry(ctx, state); err != nil {
			return err
		}
		emit(EventOperatorsChanged, "", map[string]string{"strategy": state.OperatorStrategy})
		return nil
	})
}
