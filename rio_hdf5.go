package stencil

import (
	"fmt"

	"github.com/scigolib/hdf5"
	"go-hep.org/x/hep/groot/root"
)

// H5Dataset is a dataset read out of an HDF5 file. Numeric datasets carry
// their values. For anything else Err says why they could not be read.
type H5Dataset struct {
	Path   string
	Values []float64
	Err    error
}

func (d *H5Dataset) Class() string { return "H5Dataset" }

// h5Container exposes the datasets of an HDF5 file as keys. Keys are dataset
// paths in walk order. Groups are not keys.
type h5Container struct {
	name     string
	file     *hdf5.File
	keys     []string
	datasets map[string]*hdf5.Dataset
}

func openH5Container(filename string) (*h5Container, error) {
	f, err := hdf5.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("could not open %q: %w", filename, err)
	}

	c := &h5Container{
		name:     filename,
		file:     f,
		datasets: make(map[string]*hdf5.Dataset),
	}
	f.Walk(func(path string, obj hdf5.Object) {
		ds, ok := obj.(*hdf5.Dataset)
		if !ok {
			return
		}
		if _, seen := c.datasets[path]; seen {
			return
		}
		c.keys = append(c.keys, path)
		c.datasets[path] = ds
	})
	return c, nil
}

func (c *h5Container) Keys() []string {
	return c.keys
}

func (c *h5Container) Get(name string) (root.Object, error) {
	ds, ok := c.datasets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q in %q", ErrKeyNotFound, name, c.name)
	}
	values, err := ds.Read()
	return &H5Dataset{Path: name, Values: values, Err: err}, nil
}

func (c *h5Container) Close() error {
	return c.file.Close()
}
