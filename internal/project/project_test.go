package project

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateProjectRequest_Validate(t *testing.T) {
	req := CreateProjectRequest{Name: " Thesis "}
	assert.NoError(t, req.Validate())
	assert.Equal(t, "Thesis", req.Name)
	assert.Equal(t, DefaultColor, req.Color)

	assert.Error(t, (&CreateProjectRequest{Name: ""}).Validate())
	assert.Error(t, (&CreateProjectRequest{Name: "x", Color: "red"}).Validate())
}

func TestUpdateProjectRequest_Validate(t *testing.T) {
	color := "#A1B2C3"
	assert.NoError(t, (&UpdateProjectRequest{Color: &color}).Validate())

	blank := "  "
	assert.Error(t, (&UpdateProjectRequest{Name: &blank}).Validate())
}
