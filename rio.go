package stencil

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/riofs"
	"go-hep.org/x/hep/groot/root"
)

// Functions for reading named objects out of data files with a filename only
// interface. Every call opens the file, does its work and closes it again.
// Objects handed back are fully decoded in memory, so they stay usable after
// the file is closed.

var (
	ErrKeyNotFound = errors.New("key not found")
	ErrEmptyFile   = errors.New("file contains no keys")
)

var histogramClass = regexp.MustCompile(`^TH[0-3][CSIFD]$`)

// container is a data file that can list its keys and fetch objects by key.
type container interface {
	Keys() []string
	Get(name string) (root.Object, error)
	Close() error
}

// openContainer picks the reader by file extension. Anything that is not
// HDF5 or text is handed to groot.
func openContainer(filename string) (container, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".h5", ".hdf5":
		return openH5Container(filename)
	case ".csv", ".txt", ".dat":
		return openTextContainer(filename)
	default:
		return openRootContainer(filename)
	}
}

type rootContainer struct {
	name string
	file *groot.File
	dir  riofs.Directory
}

func openRootContainer(filename string) (*rootContainer, error) {
	f, err := groot.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("could not open %q: %w", filename, err)
	}
	return &rootContainer{name: filename, file: f, dir: riofs.Dir(f)}, nil
}

func (c *rootContainer) Keys() []string {
	keys := c.file.Keys()
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, k.Name())
	}
	return names
}

// Get accepts slash separated paths into sub directories.
func (c *rootContainer) Get(name string) (root.Object, error) {
	obj, err := c.dir.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q in %q: %v", ErrKeyNotFound, name, c.name, err)
	}
	return obj, nil
}

func (c *rootContainer) Close() error {
	return c.file.Close()
}

func withContainer(filename string, f func(container) error) error {
	c, err := openContainer(filename)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logrus.WithField("tag", "rio").WithField("file", filename).WithError(err).Debug("close failed")
		}
	}()
	return f(c)
}

// Keys returns the names of all the objects in filename, in file order.
func Keys(filename string) ([]string, error) {
	var keys []string
	err := withContainer(filename, func(c container) error {
		keys = c.Keys()
		return nil
	})
	return keys, err
}

// HasKey reports whether there is an object called key in filename.
func HasKey(filename, key string) (bool, error) {
	keys, err := Keys(filename)
	if err != nil {
		return false, err
	}
	for _, k := range keys {
		if k == key {
			return true, nil
		}
	}
	return false, nil
}

// AllHaveKey reports whether every file in filenames has an object called key.
func AllHaveKey(filenames []string, key string) (bool, error) {
	for _, fn := range filenames {
		ok, err := HasKey(fn, key)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// IsHistogram tests the class name of obj against the ROOT histogram classes
// TH1C..TH3D.
func IsHistogram(obj root.Object) bool {
	if obj == nil {
		return false
	}
	return histogramClass.MatchString(obj.Class())
}

// GrabObj fetches the object called name from filename. An empty name fetches
// the first object in the file.
func GrabObj(filename, name string) (root.Object, error) {
	var obj root.Object
	err := withContainer(filename, func(c container) error {
		if name == "" {
			keys := c.Keys()
			if len(keys) == 0 {
				return fmt.Errorf("%w: %q", ErrEmptyFile, filename)
			}
			name = keys[0]
		}

		var err error
		obj, err = c.Get(name)
		return err
	})
	return obj, err
}

// GrabAllObjs fetches every object in filename, in key order.
func GrabAllObjs(filename string) ([]root.Object, error) {
	var objs []root.Object
	err := withContainer(filename, func(c container) error {
		for _, key := range c.Keys() {
			obj, err := c.Get(key)
			if err != nil {
				return err
			}
			objs = append(objs, obj)
		}
		return nil
	})
	return objs, err
}

// ContainsOnlyHists reports whether every object in filename is a histogram.
func ContainsOnlyHists(filename string) (bool, error) {
	objs, err := GrabAllObjs(filename)
	if err != nil {
		return false, err
	}
	for _, obj := range objs {
		if !IsHistogram(obj) {
			return false, nil
		}
	}
	return true, nil
}

// ZipFiles pairs up the objects of several files by position. Element i holds
// the i-th object of every file. Files with extra objects are cut to the
// shortest file.
func ZipFiles(filenames []string) ([][]root.Object, error) {
	if len(filenames) == 0 {
		return nil, nil
	}

	objLists := make([][]root.Object, 0, len(filenames))
	commonLen := -1
	for _, fn := range filenames {
		objs, err := GrabAllObjs(fn)
		if err != nil {
			return nil, err
		}
		objLists = append(objLists, objs)
		if commonLen < 0 {
			commonLen = len(objs)
		} else {
			commonLen = Min(commonLen, len(objs))
		}
	}

	zipped := make([][]root.Object, 0, commonLen)
	for i := 0; i < commonLen; i++ {
		row := make([]root.Object, 0, len(objLists))
		for _, objs := range objLists {
			row = append(row, objs[i])
		}
		zipped = append(zipped, row)
	}
	return zipped, nil
}

// CommonKeys returns the keys of the first file that exist in every file, in
// the first file's order.
func CommonKeys(filenames []string) ([]string, error) {
	if len(filenames) == 0 {
		return nil, nil
	}

	keys, err := Keys(filenames[0])
	if err != nil {
		return nil, err
	}

	shared := keys
	for _, fn := range filenames[1:] {
		other, err := Keys(fn)
		if err != nil {
			return nil, err
		}
		present := make(map[string]struct{}, len(other))
		for _, k := range other {
			present[k] = struct{}{}
		}
		shared = Filter(shared, func(k string) bool {
			_, ok := present[k]
			return ok
		})
	}
	return shared, nil
}

// CommonObjs groups the objects with the same name across filenames. There is
// one group per shared key, and each group holds one object per file, in
// filename order.
func CommonObjs(filenames []string) ([][]root.Object, error) {
	keys, err := CommonKeys(filenames)
	if err != nil {
		return nil, err
	}

	groups := make([][]root.Object, 0, len(keys))
	for _, key := range keys {
		group := make([]root.Object, 0, len(filenames))
		for _, fn := range filenames {
			obj, err := GrabObj(fn, key)
			if err != nil {
				return nil, err
			}
			group = append(group, obj)
		}
		groups = append(groups, group)
	}
	return groups, nil
}
