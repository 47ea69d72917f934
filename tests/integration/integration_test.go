package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Тестовые структуры данных соответствующие SCIM API
type UserResource struct {
	Schemas  []string `json:"schemas"`
	ID       string   `json:"id"`
	UserName string   `json:"userName"`
	Active   bool     `json:"active"`
	Emails   []Email  `json:"emails"`
}

type Email struct {
	Primary bool   `json:"primary"`
	Value   string `json:"value"`
	Type    string `json:"type"`
}

type GroupResource struct {
	Schemas     []string    `json:"schemas"`
	ID          string      `json:"id"`
	DisplayName string      `json:"displayName"`
	Members     []MemberRef `json:"members"`
}

type MemberRef struct {
	Value   string `json:"value"`
	Display string `json:"display"`
}

type ListResponse struct {
	TotalResults int               `json:"totalResults"`
	StartIndex   int               `json:"startIndex"`
	Resources    []json.RawMessage `json:"Resources"`
}

type ScimError struct {
	Schemas  []string `json:"schemas"`
	ScimType string   `json:"scimType"`
	Detail   string   `json:"detail"`
	Status   string   `json:"status"`
}

// TestE2E_ProvisioningWorkflow тестирует полный цикл SCIM провижининга
func TestE2E_ProvisioningWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Настраиваем тестовое окружение
	env := SetupTestEnvironment(t)
	defer env.Cleanup(t)

	// Ждем пока приложение будет готово
	env.WaitForHealthCheck(t)

	token := env.IssueToken(t, "org-integration")

	var alice UserResource
	t.Run("Provision User", func(t *testing.T) {
		body, _ := json.Marshal(map[string]any{"userName": "Alice@Example.com"})
		resp := env.MakeRequest(t, http.MethodPost, "/scim/v2/Users", bytes.NewReader(body), token)
		defer resp.Body.Close()

		require.Equal(t, http.StatusCreated, resp.StatusCode, "User creation should succeed")

		err := json.NewDecoder(resp.Body).Decode(&alice)
		require.NoError(t, err)

		assert.Equal(t, "alice@example.com", alice.UserName, "Email should be lowercased")
		assert.True(t, alice.Active)
		require.NotEmpty(t, alice.ID)
	})

	t.Run("Provision Duplicate Returns Conflict", func(t *testing.T) {
		body, _ := json.Marshal(map[string]any{"userName": "ALICE@example.com"})
		resp := env.MakeRequest(t, http.MethodPost, "/scim/v2/Users", bytes.NewReader(body), token)
		defer resp.Body.Close()

		require.Equal(t, http.StatusConflict, resp.StatusCode)

		var scimErr ScimError
		err := json.NewDecoder(resp.Body).Decode(&scimErr)
		require.NoError(t, err)
		assert.Equal(t, "uniqueness", scimErr.ScimType)
		assert.Equal(t, "409", scimErr.Status)
	})

	t.Run("Filter Users By Email", func(t *testing.T) {
		filter := url.QueryEscape(`userName eq "alice@example.com"`)
		resp := env.MakeRequest(t, http.MethodGet, "/scim/v2/Users?filter="+filter, nil, token)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		var list ListResponse
		err := json.NewDecoder(resp.Body).Decode(&list)
		require.NoError(t, err)
		assert.Equal(t, 1, list.TotalResults)
		assert.Equal(t, 1, list.StartIndex)
	})

	t.Run("Deactivate And Reactivate User", func(t *testing.T) {
		patch := map[string]any{
			"schemas":    []string{"urn:ietf:params:scim:api:messages:2.0:PatchOp"},
			"Operations": []map[string]any{{"op": "replace", "value": map[string]any{"active": false}}},
		}
		body, _ := json.Marshal(patch)
		resp := env.MakeRequest(t, http.MethodPatch, "/scim/v2/Users/"+alice.ID, bytes.NewReader(body), token)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		var updated UserResource
		err := json.NewDecoder(resp.Body).Decode(&updated)
		require.NoError(t, err)
		assert.False(t, updated.Active)

		patch["Operations"] = []map[string]any{{"op": "replace", "value": map[string]any{"active": true}}}
		body, _ = json.Marshal(patch)
		resp2 := env.MakeRequest(t, http.MethodPatch, "/scim/v2/Users/"+alice.ID, bytes.NewReader(body), token)
		defer resp2.Body.Close()

		require.Equal(t, http.StatusOK, resp2.StatusCode)
		err = json.NewDecoder(resp2.Body).Decode(&updated)
		require.NoError(t, err)
		assert.True(t, updated.Active)
	})

	var group GroupResource
	t.Run("Create Group", func(t *testing.T) {
		body, _ := json.Marshal(map[string]any{"displayName": "Backend Team"})
		resp := env.MakeRequest(t, http.MethodPost, "/scim/v2/Groups", bytes.NewReader(body), token)
		defer resp.Body.Close()

		require.Equal(t, http.StatusCreated, resp.StatusCode, "Group creation should succeed")

		err := json.NewDecoder(resp.Body).Decode(&group)
		require.NoError(t, err)
		assert.Equal(t, "Backend Team", group.DisplayName)
		require.NotEmpty(t, group.ID)
	})

	t.Run("Duplicate Slug Returns Conflict", func(t *testing.T) {
		body, _ := json.Marshal(map[string]any{"displayName": "backend team"})
		resp := env.MakeRequest(t, http.MethodPost, "/scim/v2/Groups", bytes.NewReader(body), token)
		defer resp.Body.Close()

		require.Equal(t, http.StatusConflict, resp.StatusCode)

		var scimErr ScimError
		err := json.NewDecoder(resp.Body).Decode(&scimErr)
		require.NoError(t, err)
		assert.Equal(t, `The slug "backend-team" is already in use.`, scimErr.Detail)
	})

	t.Run("Add Member To Group", func(t *testing.T) {
		patch := map[string]any{
			"schemas": []string{"urn:ietf:params:scim:api:messages:2.0:PatchOp"},
			"Operations": []map[string]any{{
				"op":    "add",
				"path":  "members",
				"value": []map[string]any{{"value": alice.ID}},
			}},
		}
		body, _ := json.Marshal(patch)
		resp := env.MakeRequest(t, http.MethodPatch, "/scim/v2/Groups/"+group.ID, bytes.NewReader(body), token)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		var updated GroupResource
		err := json.NewDecoder(resp.Body).Decode(&updated)
		require.NoError(t, err)
		require.Len(t, updated.Members, 1)
		assert.Equal(t, alice.ID, updated.Members[0].Value)
		assert.Equal(t, "alice@example.com", updated.Members[0].Display)
	})

	t.Run("Remove Member From Group Keeps User Active", func(t *testing.T) {
		patch := map[string]any{
			"schemas": []string{"urn:ietf:params:scim:api:messages:2.0:PatchOp"},
			"Operations": []map[string]any{{
				"op":   "remove",
				"path": fmt.Sprintf("members[value eq %q]", alice.ID),
			}},
		}
		body, _ := json.Marshal(patch)
		resp := env.MakeRequest(t, http.MethodPatch, "/scim/v2/Groups/"+group.ID, bytes.NewReader(body), token)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		var updated GroupResource
		err := json.NewDecoder(resp.Body).Decode(&updated)
		require.NoError(t, err)
		assert.Empty(t, updated.Members)

		// Пользователь остается активным после отвязки от команды
		resp2 := env.MakeRequest(t, http.MethodGet, "/scim/v2/Users/"+alice.ID, nil, token)
		defer resp2.Body.Close()

		require.Equal(t, http.StatusOK, resp2.StatusCode)
		var user UserResource
		err = json.NewDecoder(resp2.Body).Decode(&user)
		require.NoError(t, err)
		assert.True(t, user.Active)
	})

	t.Run("Delete Group Is Idempotent", func(t *testing.T) {
		resp := env.MakeRequest(t, http.MethodDelete, "/scim/v2/Groups/"+group.ID, nil, token)
		resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = env.MakeRequest(t, http.MethodDelete, "/scim/v2/Groups/"+group.ID, nil, token)
		resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		// Команда скрыта, но строка остается до обработки воркером
		var status string
		err := env.DB.QueryRow(env.ctx,
			`SELECT status FROM teams WHERE id = $1`, group.ID).Scan(&status)
		require.NoError(t, err)
		assert.Equal(t, "PENDING_DELETION", status)

		resp = env.MakeRequest(t, http.MethodGet, "/scim/v2/Groups/"+group.ID, nil, token)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Delete User Is Idempotent", func(t *testing.T) {
		resp := env.MakeRequest(t, http.MethodDelete, "/scim/v2/Users/"+alice.ID, nil, token)
		resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = env.MakeRequest(t, http.MethodDelete, "/scim/v2/Users/"+alice.ID, nil, token)
		resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = env.MakeRequest(t, http.MethodGet, "/scim/v2/Users/"+alice.ID, nil, token)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Reprovision After Delete", func(t *testing.T) {
		body, _ := json.Marshal(map[string]any{"userName": "alice@example.com"})
		resp := env.MakeRequest(t, http.MethodPost, "/scim/v2/Users", bytes.NewReader(body), token)
		defer resp.Body.Close()

		require.Equal(t, http.StatusCreated, resp.StatusCode, "Removed user should be re-provisionable")
	})
}

// TestE2E_OrgIsolation проверяет изоляцию данных между организациями
func TestE2E_OrgIsolation(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	env := SetupTestEnvironment(t)
	defer env.Cleanup(t)
	env.WaitForHealthCheck(t)

	tokenA := env.IssueToken(t, "org-a")
	tokenB := env.IssueToken(t, "org-b")

	// Создаем пользователя в организации A
	body, _ := json.Marshal(map[string]any{"userName": "shared@example.com"})
	resp := env.MakeRequest(t, http.MethodPost, "/scim/v2/Users", bytes.NewReader(body), tokenA)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var user UserResource
	err := json.NewDecoder(resp.Body).Decode(&user)
	resp.Body.Close()
	require.NoError(t, err)

	// Организация B не видит пользователя организации A
	resp = env.MakeRequest(t, http.MethodGet, "/scim/v2/Users/"+user.ID, nil, tokenB)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Тот же email можно создать в организации B
	body, _ = json.Marshal(map[string]any{"userName": "shared@example.com"})
	resp = env.MakeRequest(t, http.MethodPost, "/scim/v2/Users", bytes.NewReader(body), tokenB)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// Запрос без токена отклоняется
	resp = env.MakeRequest(t, http.MethodGet, "/scim/v2/Users", nil, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
