package handlers_test

import (
	"fmt"
	"net/http"
	"testing"
)

func TestCreateCategory(t *testing.T) {
	app := CreateTestApp()
	token, username := loginUser(t, app, "catcreate")

	category := createCategory(t, app, token, "Work")
	if category["name"] != "Work" {
		t.Errorf("Expected name Work, got %v", category["name"])
	}
	if category["user"] != username {
		t.Errorf("Expected user %s, got %v", username, category["user"])
	}
	if category["id"] == nil {
		t.Errorf("Expected category id in response")
	}
}

func TestDuplicateCategoryNameCaseInsensitive(t *testing.T) {
	app := CreateTestApp()
	token, _ := loginUser(t, app, "catdup")

	createCategory(t, app, token, "Personal")

	// Same owner, different case: rejected.
	resp := doRequest(t, app, "POST", "/api/categories/", token, map[string]string{"name": "personal"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for case-insensitive duplicate, got %d", resp.StatusCode)
	}
	result := decodeBody(t, resp)
	if result["name"] == nil {
		t.Errorf("Expected name error in response, got %v", result)
	}

	// Different owner, same name: allowed.
	otherToken, _ := loginUser(t, app, "catdup2")
	resp = doRequest(t, app, "POST", "/api/categories/", otherToken, map[string]string{"name": "Personal"})
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("Expected 201 for same name under another owner, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestCategoryOwnershipIsolation(t *testing.T) {
	app := CreateTestApp()
	ownerToken, _ := loginUser(t, app, "catowner")
	otherToken, _ := loginUser(t, app, "catother")

	category := createCategory(t, app, ownerToken, "Secret")
	categoryID := int(category["id"].(float64))
	path := fmt.Sprintf("/api/categories/%d/", categoryID)

	// Every access by a non-owner is a 404, never a 403.
	for _, method := range []string{"GET", "DELETE"} {
		resp := doRequest(t, app, method, path, otherToken, nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("Expected 404 for %s by non-owner, got %d", method, resp.StatusCode)
		}
	}
	resp := doRequest(t, app, "PUT", path, otherToken, map[string]string{"name": "Stolen"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for PUT by non-owner, got %d", resp.StatusCode)
	}

	// The non-owner's list must not include it.
	resp = doRequest(t, app, "GET", "/api/categories/", otherToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 listing categories, got %d", resp.StatusCode)
	}
	result := decodeBody(t, resp)
	for _, item := range result["results"].([]interface{}) {
		if item.(map[string]interface{})["name"] == "Secret" {
			t.Errorf("Non-owner list contains another user's category")
		}
	}

	// The owner still sees it.
	resp = doRequest(t, app, "GET", path, ownerToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 for owner GET, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUpdateCategory(t *testing.T) {
	app := CreateTestApp()
	token, _ := loginUser(t, app, "catupdate")

	category := createCategory(t, app, token, "Oldname")
	createCategory(t, app, token, "Taken")
	categoryID := int(category["id"].(float64))
	path := fmt.Sprintf("/api/categories/%d/", categoryID)

	resp := doRequest(t, app, "PUT", path, token, map[string]string{"name": "Newname"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 renaming category, got %d", resp.StatusCode)
	}
	result := decodeBody(t, resp)
	if result["name"] != "Newname" {
		t.Errorf("Expected renamed category, got %v", result["name"])
	}

	// Renaming onto an existing name (any case) fails.
	resp = doRequest(t, app, "PUT", path, token, map[string]string{"name": "TAKEN"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 renaming to duplicate, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// PUT without a name is rejected; PATCH without a name is a no-op.
	resp = doRequest(t, app, "PUT", path, token, map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for PUT without name, got %d", resp.StatusCode)
	}
	resp.Body.Close()
	resp = doRequest(t, app, "PATCH", path, token, map[string]string{})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 for empty PATCH, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestCategoryListOrderingAndSearch(t *testing.T) {
	app := CreateTestApp()
	token, _ := loginUser(t, app, "catlist")

	createCategory(t, app, token, "Zebra")
	createCategory(t, app, token, "Alpha")
	createCategory(t, app, token, "Hobbies")

	// Default ordering is alphabetical by name.
	resp := doRequest(t, app, "GET", "/api/categories/", token, nil)
	result := decodeBody(t, resp)
	results := result["results"].([]interface{})
	if len(results) != 3 {
		t.Fatalf("Expected 3 categories, got %d", len(results))
	}
	if results[0].(map[string]interface{})["name"] != "Alpha" {
		t.Errorf("Expected Alpha first, got %v", results[0])
	}
	if results[2].(map[string]interface{})["name"] != "Zebra" {
		t.Errorf("Expected Zebra last, got %v", results[2])
	}

	// Substring search is case-insensitive.
	resp = doRequest(t, app, "GET", "/api/categories/?search=hobb", token, nil)
	result = decodeBody(t, resp)
	if int(result["count"].(float64)) != 1 {
		t.Errorf("Expected 1 search hit, got %v", result["count"])
	}
}

func TestDeleteCategoryClearsTaskCategory(t *testing.T) {
	app := CreateTestApp()
	token, _ := loginUser(t, app, "catdelete")

	category := createCategory(t, app, token, "Doomed")
	categoryID := int(category["id"].(float64))

	task := createTask(t, app, token, map[string]interface{}{
		"title":    "Attached task",
		"due_date": "2026-01-15",
		"category": categoryID,
	})
	taskID := int(task["id"].(float64))

	resp := doRequest(t, app, "DELETE", fmt.Sprintf("/api/categories/%d/", categoryID), token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("Expected 204 deleting category, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// The task survives, uncategorized.
	resp = doRequest(t, app, "GET", fmt.Sprintf("/api/tasks/%d/", taskID), token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 fetching task, got %d", resp.StatusCode)
	}
	result := decodeBody(t, resp)
	if result["category"] != nil {
		t.Errorf("Expected null category after delete, got %v", result["category"])
	}
}
