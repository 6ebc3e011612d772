// Package onnx provides an openpose.Executor backed by ONNX Runtime.  The
// shared library must be loaded with InitEnvironment before creating an
// Executor.
package onnx
