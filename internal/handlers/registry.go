package handlers

import (
	"net/http"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"

	"stakereferral/internal/referral"
)

type InitializeRegistryRequest struct {
	Admin               string   `json:"admin" binding:"required"`
	MsolMint            string   `json:"msol_mint" binding:"required"`
	TreasuryMsolAccount string   `json:"treasury_msol_account" binding:"required"`
	TreasuryAuthority   string   `json:"treasury_authority" binding:"required"`
	Foremen             []string `json:"foremen"`
	OperatorRoot        string   `json:"operator_root"`
}

type SetAdminRequest struct {
	Admin string `json:"admin" binding:"required"`
}

type SetForemenRequest struct {
	Foremen []string `json:"foremen" binding:"required"`
}

type SetOperatorRootRequest struct {
	Root string `json:"root" binding:"required"`
}

func parseForemen(foremen []string) ([]solana.PublicKey, error) {
	keys := make([]solana.PublicKey, 0, len(foremen))
	for _, f := range foremen {
		key, err := parseKey("foreman", f)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// GetRegistry returns the global registry
func GetRegistry(c *gin.Context) {
	state, err := Engine.Registry(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// InitializeRegistry creates the registry. The caller must be the admin
// named in the body.
func InitializeRegistry(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	var request InitializeRegistryRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var p keyParser
	in := referral.RegistryInput{
		Admin:               p.key("admin", request.Admin),
		MsolMint:            p.key("msol_mint", request.MsolMint),
		TreasuryMsolAccount: p.key("treasury_msol_account", request.TreasuryMsolAccount),
		TreasuryAuthority:   p.key("treasury_authority", request.TreasuryAuthority),
	}
	if p.err != nil {
		respondError(c, p.err)
		return
	}
	foremen, err := parseForemen(request.Foremen)
	if err != nil {
		respondError(c, err)
		return
	}
	in.Foremen = foremen
	if request.OperatorRoot != "" {
		root, err := referral.ParseOperatorRoot(request.OperatorRoot)
		if err != nil {
			respondError(c, err)
			return
		}
		in.OperatorRoot = &root
	}

	state, err := Engine.InitializeRegistry(c.Request.Context(), caller, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, state)
}

// SetAdmin hands the admin role to another key
func SetAdmin(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	var request SetAdminRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	admin, err := parseKey("admin", request.Admin)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := Engine.SetAdmin(c.Request.Context(), caller, admin); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"admin": admin.String()})
}

// SetForemen replaces the operator list
func SetForemen(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	var request SetForemenRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	foremen, err := parseForemen(request.Foremen)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := Engine.SetForemen(c.Request.Context(), caller, foremen); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"foremen": request.Foremen})
}

// SetOperatorRoot switches operators to a merkle root
func SetOperatorRoot(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	var request SetOperatorRootRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	root, err := referral.ParseOperatorRoot(request.Root)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := Engine.SetOperatorRoot(c.Request.Context(), caller, root); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"operator_root": request.Root})
}

// VerifyCaller reports which roles the caller holds
func VerifyCaller(c *gin.Context) {
	caller, proof, ok := authFrom(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	roles := gin.H{"caller": caller.String(), "admin": false, "operator": false}
	for role, check := range map[string]func() error{
		"admin":    func() error { return Engine.VerifyAdmin(ctx, caller) },
		"operator": func() error { return Engine.VerifyOperator(ctx, caller, proof) },
	} {
		err := check()
		if err == nil {
			roles[role] = true
			continue
		}
		if referral.KindOf(err) != referral.KindAuthorization {
			respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, roles)
}
