// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package failure classifies errors returned by external collaborators.
//
// Every failure that crosses from a collaborator (downloader, transcriber,
// extractor, image generator, index store) into the ingestion orchestrator
// passes through Classify, which maps it to one of a closed set of kinds:
//
//	quota_exceeded      never retried
//	rate_limited        retried
//	invalid_credential  never retried
//	timeout             retried
//	server_error        retried
//	invalid_request     never retried
//	unknown             never retried
//
// Classification inspects, in order: errors that are already classified,
// context cancellation and deadlines, network timeouts, errors exposing an
// HTTP status through a StatusCode() int method, and finally well-known
// message fragments. Anything unrecognized is unknown.
//
// Classify is pure. It never logs and never fails; callers decide what to
// record.
package failure
