/*
go-openpose provides multi-person 2D human pose estimation for OpenPose style
models along with an asynchronous inference pipeline to drive them.

The root package contains the pipeline which dispatches inference requests
from a fixed size pool of reusable request slots to an Executor, receives
completion callbacks on the executor's own goroutines and hands the results
back to the caller in frame order.

The postprocess subpackage decodes the heatmap and part affinity field (PAF)
tensors produced by the model into human poses and maps them back to the
original image space.

An Executor backed by ONNX Runtime is provided in the onnx subpackage and a
pure Go LocalExecutor can run any inference function.

See example code and usage in the example subdirectory.
*/
package openpose
