// Copyright (c) 2024 The Blend65 Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package ast

import "fmt"

// Storage is the directive attached to a declaration (§6.1): @zp, @ram,
// @data, or @map <address>.
type Storage int

const (
	StorageDefault Storage = iota
	StorageZP
	StorageRam
	StorageData
	StorageMap
)

func (s Storage) String() string {
	switch s {
	case StorageZP:
		return "@zp"
	case StorageRam:
		return "@ram"
	case StorageData:
		return "@data"
	case StorageMap:
		return "@map"
	default:
		return ""
	}
}

// Param is one function parameter: a name and declared type.
type Param struct {
	Name string
	Type *Type
	Span Span
}

// GlobalDecl is a module-level variable.
type GlobalDecl struct {
	Name      string
	Type      *Type
	Storage   Storage
	MapAddr   uint16 // valid only when Storage == StorageMap
	Exported  bool
	DeclSpan  Span
}

func (g *GlobalDecl) String() string {
	return fmt.Sprintf("GlobalDecl{%s %s %s}", g.Name, g.Type, g.Storage)
}

// FuncDecl is a function or callback declaration (§6.1). Exported functions
// are importable from other modules; Callback marks an interrupt-service
// routine entry point consumed by the frame allocator's thread-context
// classification (§4.1.3 step 2).
type FuncDecl struct {
	Name     string
	Exported bool
	Callback bool
	Params   []*Param
	RetType  *Type
	Body     []Stmt
	DeclSpan Span
}

func (f *FuncDecl) String() string {
	tag := ""
	if f.Callback {
		tag = "@callback"
	}
	return fmt.Sprintf("FuncDecl{%s%s}", f.Name, tag)
}

// Module is one compilation unit: a qualified name, its imports/exports,
// and an ordered body of globals and function declarations.
type Module struct {
	QualifiedName string
	Imports       []string
	Exports       []string
	Globals       []*GlobalDecl
	Funcs         []*FuncDecl
}

func (m *Module) FindFunc(name string) *FuncDecl {
	for _, f := range m.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}
