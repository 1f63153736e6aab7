// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package binstruct

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"git.lukeshu.com/go/typedsync"

	"git.lukeshu.com/btrfs-rootitem/lib/binstruct/binutil"
)

// End marks the end of a packed struct; its `bin:"off=N"` tag must
// equal the total packed size, which catches layout typos at the
// first use of the type.
type End struct{}

var endType = reflect.TypeOf(End{})

type tag struct {
	skip bool

	off int
	siz int
}

// parseStructTag parses a `bin:"off=0x10, siz=0x8"` tag; "-" skips
// the field.
func parseStructTag(str string) (tag, error) {
	var ret tag
	for _, part := range strings.Split(str, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
			continue
		case part == "-":
			return tag{skip: true}, nil
		}
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return tag{}, fmt.Errorf("option is not a key=value pair: %q", part)
		}
		var dst *int
		switch key {
		case "off":
			dst = &ret.off
		case "siz":
			dst = &ret.siz
		default:
			return tag{}, fmt.Errorf("unrecognized option %q", key)
		}
		vint, err := strconv.ParseInt(val, 0, 0)
		if err != nil {
			return tag{}, fmt.Errorf("option %q: %w", key, err)
		}
		*dst = int(vint)
	}
	return ret, nil
}

type structHandler struct {
	name   string
	Size   int
	fields []structField
}

type structField struct {
	name string
	tag
}

func (sh structHandler) fieldErr(i int, err error) error {
	return fmt.Errorf("struct %q field %v %q: %w", sh.name, i, sh.fields[i].name, err)
}

func (sh structHandler) Unmarshal(dat []byte, dst reflect.Value) (int, error) {
	if err := binutil.NeedNBytes(dat, sh.Size); err != nil {
		return 0, fmt.Errorf("struct %q %w", sh.name, err)
	}
	var n int
	for i, field := range sh.fields {
		if field.skip {
			continue
		}
		_n, err := Unmarshal(dat[n:], dst.Field(i).Addr().Interface())
		if err != nil {
			if _n >= 0 {
				n += _n
			}
			return n, sh.fieldErr(i, err)
		}
		if _n != field.siz {
			return n, sh.fieldErr(i, fmt.Errorf("consumed %v bytes but should have consumed %v bytes", _n, field.siz))
		}
		n += _n
	}
	return n, nil
}

func (sh structHandler) Marshal(val reflect.Value) ([]byte, error) {
	ret := make([]byte, 0, sh.Size)
	for i, field := range sh.fields {
		if field.skip {
			continue
		}
		bs, err := Marshal(val.Field(i).Interface())
		ret = append(ret, bs...)
		if err != nil {
			return ret, sh.fieldErr(i, err)
		}
	}
	return ret, nil
}

// genStructHandler checks that the tags of typ describe a packed
// layout with no gaps or overlaps, ending at the End marker.
func genStructHandler(typ reflect.Type) (structHandler, error) {
	ret := structHandler{
		name:   typ.String(),
		fields: make([]structField, typ.NumField()),
	}

	var curOffset, endOffset int
	for i := range ret.fields {
		fieldInfo := typ.Field(i)
		ret.fields[i].name = fieldInfo.Name

		if fieldInfo.Anonymous && fieldInfo.Type != endType {
			return ret, ret.fieldErr(i, fmt.Errorf("binstruct does not support embedded fields"))
		}
		fieldTag, err := parseStructTag(fieldInfo.Tag.Get("bin"))
		if err != nil {
			return ret, ret.fieldErr(i, err)
		}
		ret.fields[i].tag = fieldTag
		if fieldTag.skip {
			continue
		}

		if fieldTag.off != curOffset {
			return ret, ret.fieldErr(i, fmt.Errorf("tag says off=%#x but curOffset=%#x", fieldTag.off, curOffset))
		}
		if fieldInfo.Type == endType {
			endOffset = curOffset
		}
		fieldSize, err := staticSize(fieldInfo.Type)
		if err != nil {
			return ret, ret.fieldErr(i, err)
		}
		if fieldTag.siz != fieldSize {
			return ret, ret.fieldErr(i, fmt.Errorf("tag says siz=%#x but StaticSize(typ)=%#x", fieldTag.siz, fieldSize))
		}
		curOffset += fieldTag.siz
	}
	ret.Size = curOffset

	if ret.Size != endOffset {
		return ret, fmt.Errorf("struct %q: .Size=%v but endOffset=%v",
			ret.name, ret.Size, endOffset)
	}
	return ret, nil
}

// structCache is shared by every goroutine that encodes or decodes;
// handlers are immutable once generated, so racing generations of the
// same handler are harmless.
var structCache typedsync.Map[reflect.Type, structHandler]

func getStructHandler(typ reflect.Type) structHandler {
	if h, ok := structCache.Load(typ); ok {
		return h
	}

	h, err := genStructHandler(typ)
	if err != nil {
		panic(&InvalidTypeError{
			Type: typ,
			Err:  err,
		})
	}
	h, _ = structCache.LoadOrStore(typ, h)
	return h
}
