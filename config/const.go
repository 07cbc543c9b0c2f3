//  Copyright (c) 2023 Uber Technologies, Inc.
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

package config

// This file hosts non-user-configurable parameters --- these are for development and testing purposes only.

// DefaultMaxIterationsFactor is the default multiple of the program size (number of types, fields
// and methods) after which the analysis is aborted. Every forced break of a delay cycle settles at
// least one property, so a program that converges needs far fewer rounds; the factor only guards
// against defects in the analyser itself.
const DefaultMaxIterationsFactor = 10

// MinIterationLimit is the lowest iteration limit, used for very small programs.
const MinIterationLimit = 20

// NoLintAll is the entry of a method's nolint list that suppresses every message in that method.
const NoLintAll = "all"

// SnapshotExtension is the file extension of result snapshots written by the CLI.
const SnapshotExtension = ".imsnap"
