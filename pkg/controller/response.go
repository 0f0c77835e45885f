package controller

import (
	"encoding/json"
	"net/http"
)

// SuccessResponse is the body of a successful JSON answer.
type SuccessResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

// ErrorResponse is the body of a failed JSON answer.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Success writes {"success":true,"data":...} with status 200.
func Success(w http.ResponseWriter, data any) error {
	return JSON(w, http.StatusOK, SuccessResponse{Success: true, Data: data})
}

// Created writes a success payload with status 201.
func Created(w http.ResponseWriter, data any) error {
	return JSON(w, http.StatusCreated, SuccessResponse{Success: true, Data: data})
}

// Error maps err and writes {"success":false,"message":...,"code":...}.
func Error(w http.ResponseWriter, err error) error {
	status, body := MapError(err)
	return JSON(w, status, body)
}

// JSON writes v with the JSON content type and open CORS origin.
func JSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
