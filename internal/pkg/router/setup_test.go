package router

import (
	"testing"

	"github.com/stretchr/testify/assert"

	apiv1 "github.com/StefanHaberl/VoiceFox/internal/api/v1"
)

func TestRoutersShareAPIServer(t *testing.T) {
	apiServer := &apiv1.APIServer{}

	assert.Same(t, apiServer, NewApiRouter(apiServer).apiServer)
	assert.Same(t, apiServer, NewInternalRouter(apiServer).apiServer)
}
